package session_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nikolayk812/cartprice/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, mr
}

type checkoutState struct {
	Step   string            `json:"checkout_step"`
	Fields map[string]string `json:"fields,omitempty"`
}

func TestStore_SaveLoadDelete(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := t.Context()

	store, err := session.NewStore(client, time.Hour)
	require.NoError(t, err)

	var got checkoutState
	found, err := store.Load(ctx, "sess-1", "checkout", &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := checkoutState{Step: "review", Fields: map[string]string{"po": "42"}}
	require.NoError(t, store.Save(ctx, "sess-1", "checkout", want))
	assert.True(t, mr.Exists("session:sess-1:checkout"))
	assert.Equal(t, time.Hour, mr.TTL("session:sess-1:checkout"))

	found, err = store.Load(ctx, "sess-1", "checkout", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	// other sessions are isolated
	found, err = store.Load(ctx, "sess-2", "checkout", &checkoutState{})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Delete(ctx, "sess-1", "checkout"))
	found, err = store.Load(ctx, "sess-1", "checkout", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Expiry(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := t.Context()

	store, err := session.NewStore(client, 10*time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "sess-1", "checkout", checkoutState{Step: "billing_info"}))

	// a load slides the expiry
	mr.FastForward(8 * time.Minute)
	found, err := store.Load(ctx, "sess-1", "checkout", &checkoutState{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10*time.Minute, mr.TTL("session:sess-1:checkout"))

	mr.FastForward(11 * time.Minute)
	found, err = store.Load(ctx, "sess-1", "checkout", &checkoutState{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Errors(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := t.Context()

	_, err := session.NewStore(nil, time.Hour)
	require.EqualError(t, err, "client is nil")

	store, err := session.NewStore(client, 0)
	require.NoError(t, err)

	err = store.Save(ctx, "", "checkout", checkoutState{})
	require.EqualError(t, err, "sessionID is empty")

	require.NoError(t, mr.Set("session:sess-1:checkout", "{not json"))
	_, err = store.Load(ctx, "sess-1", "checkout", &checkoutState{})
	require.ErrorContains(t, err, "json.Unmarshal")

	err = store.Save(ctx, "sess-1", "checkout", func() {})
	require.ErrorContains(t, err, "json.Marshal")
}
