package session

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CartRepository stores anonymous carts as one Redis hash per (session, cart),
// field = item key, value = JSON item. The session ID is the owner ID.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewCartRepository(client *redis.Client, ttl time.Duration) (*CartRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &CartRepository{client: client, ttl: ttl, now: time.Now}, nil
}

// stored wraps an item with its insertion sequence, so listing keeps add order
// even when two items share a CreatedAt.
type stored struct {
	Seq  int64           `json:"seq"`
	Item domain.CartItem `json:"item"`
}

func (r *CartRepository) GetCart(ctx context.Context, ownerID, cartName string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}
	if cartName == "" {
		return domain.Cart{}, fmt.Errorf("cartName is empty")
	}

	byKey, err := r.entries(ctx, ownerID, cartName)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("r.entries: %w", err)
	}

	entries := slices.Collect(maps.Values(byKey))
	slices.SortFunc(entries, func(a, b stored) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	items := make([]domain.CartItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.Item)
	}

	return domain.Cart{
		OwnerID: ownerID,
		Name:    cartName,
		Items:   items,
	}, nil
}

// SaveItems upserts items in one MULTI/EXEC block. Existing items keep their
// sequence and CreatedAt.
func (r *CartRepository) SaveItems(ctx context.Context, ownerID string, items ...domain.CartItem) error {
	if ownerID == "" {
		return fmt.Errorf("ownerID is empty")
	}
	if len(items) == 0 {
		return nil
	}

	existing := map[string]map[string]stored{}
	for _, item := range items {
		if item.Key == "" {
			return fmt.Errorf("item key is empty")
		}
		if item.CartName == "" {
			return fmt.Errorf("cartName is empty")
		}
		if _, ok := existing[item.CartName]; ok {
			continue
		}

		entries, err := r.entries(ctx, ownerID, item.CartName)
		if err != nil {
			return fmt.Errorf("r.entries: %w", err)
		}
		existing[item.CartName] = entries
	}

	writes := map[string][]any{}
	for _, item := range items {
		entries := existing[item.CartName]

		e, ok := entries[item.Key]
		if ok {
			item.CreatedAt = e.Item.CreatedAt
		} else {
			e.Seq = nextSeq(entries)
			if item.CreatedAt.IsZero() {
				item.CreatedAt = r.now().UTC()
			}
		}
		e.Item = item
		entries[item.Key] = e

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		key := cartKey(ownerID, item.CartName)
		writes[key] = append(writes[key], item.Key, data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, values := range writes {
			pipe.HSet(ctx, key, values...)
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("client.TxPipelined: %w", err)
	}
	return nil
}

func (r *CartRepository) DeleteItems(ctx context.Context, ownerID, cartName string, keys ...string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("ownerID is empty")
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.client.HDel(ctx, cartKey(ownerID, cartName), keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("client.HDel: %w", err)
	}
	return n, nil
}

func (r *CartRepository) DeleteCart(ctx context.Context, ownerID, cartName string) error {
	if ownerID == "" {
		return fmt.Errorf("ownerID is empty")
	}

	if err := r.client.Del(ctx, cartKey(ownerID, cartName)).Err(); err != nil {
		return fmt.Errorf("client.Del: %w", err)
	}
	return nil
}

func (r *CartRepository) entries(ctx context.Context, ownerID, cartName string) (map[string]stored, error) {
	fields, err := r.client.HGetAll(ctx, cartKey(ownerID, cartName)).Result()
	if err != nil {
		return nil, fmt.Errorf("client.HGetAll: %w", err)
	}

	entries := make(map[string]stored, len(fields))
	for key, raw := range fields {
		var e stored
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("json.Unmarshal item[%s]: %w", key, err)
		}
		entries[key] = e
	}
	return entries, nil
}

func nextSeq(entries map[string]stored) int64 {
	var seq int64
	for _, e := range entries {
		seq = max(seq, e.Seq)
	}
	return seq + 1
}

func cartKey(ownerID, cartName string) string {
	return fmt.Sprintf("session:%s:cart:%s", ownerID, cartName)
}
