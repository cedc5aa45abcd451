// Package memory holds in-memory implementations of the storage ports.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nikolayk812/cartprice/internal/domain"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartItem
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: map[string][]domain.CartItem{}}
}

func (r *CartRepository) GetCart(_ context.Context, ownerID, cartName string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.carts[cartKey(ownerID, cartName)]
	items := make([]domain.CartItem, 0, len(stored))
	for _, it := range stored {
		items = append(items, it.Clone())
	}

	return domain.Cart{OwnerID: ownerID, Name: cartName, Items: items}, nil
}

func (r *CartRepository) SaveItems(_ context.Context, ownerID string, items ...domain.CartItem) error {
	if ownerID == "" {
		return fmt.Errorf("ownerID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		key := cartKey(ownerID, item.CartName)
		stored := r.carts[key]
		idx := slices.IndexFunc(stored, func(it domain.CartItem) bool { return it.Key == item.Key })
		if idx >= 0 {
			item.CreatedAt = stored[idx].CreatedAt
			stored[idx] = item.Clone()
		} else {
			stored = append(stored, item.Clone())
		}
		r.carts[key] = stored
	}

	return nil
}

func (r *CartRepository) DeleteItems(_ context.Context, ownerID, cartName string, keys ...string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("ownerID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cartKey(ownerID, cartName)
	before := len(r.carts[key])
	r.carts[key] = slices.DeleteFunc(r.carts[key], func(it domain.CartItem) bool {
		return slices.Contains(keys, it.Key)
	})

	return int64(before - len(r.carts[key])), nil
}

func (r *CartRepository) DeleteCart(_ context.Context, ownerID, cartName string) error {
	if ownerID == "" {
		return fmt.Errorf("ownerID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, cartKey(ownerID, cartName))
	return nil
}

func cartKey(ownerID, cartName string) string {
	return ownerID + "/" + cartName
}
