package port

import (
	"context"

	"github.com/nikolayk812/cartprice/internal/domain"
)

// CartRepository persists cart items for one backing scope: the anonymous
// session store or the customer-identity store.
type CartRepository interface {
	GetCart(ctx context.Context, ownerID, cartName string) (domain.Cart, error)
	// SaveItems upserts items atomically.
	SaveItems(ctx context.Context, ownerID string, items ...domain.CartItem) error
	DeleteItems(ctx context.Context, ownerID, cartName string, keys ...string) (int64, error)
	DeleteCart(ctx context.Context, ownerID, cartName string) error
}
