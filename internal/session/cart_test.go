package session_test

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRepository_SaveAndGet(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := t.Context()

	repo, err := session.NewCartRepository(client, time.Hour)
	require.NoError(t, err)

	ownerID := gofakeit.UUID()

	master := randomItem()
	variant := uuid.New()
	price := decimal.RequireFromString("9.99")
	master.VariantID = &variant
	master.PriceOverride = &price
	component := randomItem()
	component.BundleMasterKey = master.Key
	third := randomItem()

	require.NoError(t, repo.SaveItems(ctx, ownerID, master, component))
	require.NoError(t, repo.SaveItems(ctx, ownerID, third))

	cart, err := repo.GetCart(ctx, ownerID, domain.DefaultCartName)
	require.NoError(t, err)
	assert.Equal(t, ownerID, cart.OwnerID)
	assert.Equal(t, domain.DefaultCartName, cart.Name)

	// add order is kept
	require.Len(t, cart.Items, 3)
	assertItem(t, master, cart.Items[0])
	assertItem(t, component, cart.Items[1])
	assertItem(t, third, cart.Items[2])

	assert.Equal(t, time.Hour, mr.TTL("session:"+ownerID+":cart:"+domain.DefaultCartName))

	empty, err := repo.GetCart(ctx, ownerID, "wishlist")
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}

func TestCartRepository_Upsert(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := t.Context()

	repo, err := session.NewCartRepository(client, time.Hour)
	require.NoError(t, err)

	ownerID := gofakeit.UUID()
	first, second := randomItem(), randomItem()
	require.NoError(t, repo.SaveItems(ctx, ownerID, first, second))

	before, err := repo.GetCart(ctx, ownerID, domain.DefaultCartName)
	require.NoError(t, err)

	first.Quantity += 5
	first.Postponed = true
	first.CreatedAt = time.Now().Add(time.Hour)
	require.NoError(t, repo.SaveItems(ctx, ownerID, first))

	after, err := repo.GetCart(ctx, ownerID, domain.DefaultCartName)
	require.NoError(t, err)
	require.Len(t, after.Items, 2)

	// position and creation time survive the update
	assert.Equal(t, first.Key, after.Items[0].Key)
	assert.Equal(t, first.Quantity, after.Items[0].Quantity)
	assert.True(t, after.Items[0].Postponed)
	assert.True(t, before.Items[0].CreatedAt.Equal(after.Items[0].CreatedAt))
}

func TestCartRepository_Delete(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := t.Context()

	repo, err := session.NewCartRepository(client, time.Hour)
	require.NoError(t, err)

	ownerID := gofakeit.UUID()
	a, b, c := randomItem(), randomItem(), randomItem()
	wish := randomItem()
	wish.CartName = "wishlist"
	require.NoError(t, repo.SaveItems(ctx, ownerID, a, b, c, wish))

	n, err := repo.DeleteItems(ctx, ownerID, domain.DefaultCartName, a.Key, c.Key, gofakeit.UUID())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	cart, err := repo.GetCart(ctx, ownerID, domain.DefaultCartName)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, b.Key, cart.Items[0].Key)

	require.NoError(t, repo.DeleteCart(ctx, ownerID, domain.DefaultCartName))
	assert.False(t, mr.Exists("session:"+ownerID+":cart:"+domain.DefaultCartName))

	other, err := repo.GetCart(ctx, ownerID, "wishlist")
	require.NoError(t, err)
	assert.Len(t, other.Items, 1)
}

func TestCartRepository_Errors(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := t.Context()

	_, err := session.NewCartRepository(nil, time.Hour)
	require.EqualError(t, err, "client is nil")

	repo, err := session.NewCartRepository(client, 0)
	require.NoError(t, err)

	tests := []struct {
		name      string
		ownerID   string
		item      domain.CartItem
		wantError string
	}{
		{
			name:      "empty owner ID",
			ownerID:   "",
			item:      randomItem(),
			wantError: "ownerID is empty",
		},
		{
			name:    "empty item key",
			ownerID: "sess-1",
			item: func() domain.CartItem {
				i := randomItem()
				i.Key = ""
				return i
			}(),
			wantError: "item key is empty",
		},
		{
			name:    "empty cart name",
			ownerID: "sess-1",
			item: func() domain.CartItem {
				i := randomItem()
				i.CartName = ""
				return i
			}(),
			wantError: "cartName is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.SaveItems(ctx, tt.ownerID, tt.item)
			require.EqualError(t, err, tt.wantError)
		})
	}

	mr.HSet("session:sess-1:cart:main", "broken", "{")
	_, err = repo.GetCart(ctx, "sess-1", domain.DefaultCartName)
	require.ErrorContains(t, err, "json.Unmarshal item[broken]")
}

func randomItem() domain.CartItem {
	return domain.CartItem{
		Key:        gofakeit.UUID(),
		CartName:   domain.DefaultCartName,
		ProductID:  uuid.MustParse(gofakeit.UUID()),
		Options:    map[string]string{"size": gofakeit.RandomString([]string{"S", "M", "L"})},
		Extras:     []string{gofakeit.Word()},
		Quantity:   gofakeit.IntRange(1, 5),
		CustomData: map[string]string{"engraving": gofakeit.Word()},
	}
}

func assertItem(t *testing.T, expected, actual domain.CartItem) {
	t.Helper()

	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.CartItem{}, "CreatedAt", "CartDiscount"),
		cmpopts.EquateEmpty(),
		cmp.Comparer(func(x, y decimal.Decimal) bool {
			return x.Equal(y)
		}),
	}

	assert.Empty(t, cmp.Diff(expected, actual, opts))
	assert.False(t, actual.CreatedAt.IsZero())
}
