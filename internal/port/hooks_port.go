package port

import (
	"context"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// PriceOverrideProvider may supply a unit price outright. The first provider
// returning ok=true wins.
type PriceOverrideProvider interface {
	OverridePrice(ctx context.Context, item domain.CartItem, product domain.Product) (decimal.Decimal, bool, error)
}

// CartMutationObserver is notified synchronously around cart mutations.
// A Before* error vetoes the mutation.
type CartMutationObserver interface {
	BeforeAdd(ctx context.Context, item *domain.CartItem) error
	AfterAdd(ctx context.Context, item domain.CartItem)
	BeforeRemove(ctx context.Context, item domain.CartItem) error
	AfterRemove(ctx context.Context, item domain.CartItem)
	BeforeQuantityChange(ctx context.Context, item domain.CartItem, quantity int) error
	AfterQuantityChange(ctx context.Context, item domain.CartItem, oldQuantity int)
}

// NopObserver can be embedded to implement only some notifications.
type NopObserver struct{}

func (NopObserver) BeforeAdd(context.Context, *domain.CartItem) error { return nil }
func (NopObserver) AfterAdd(context.Context, domain.CartItem) {}
func (NopObserver) BeforeRemove(context.Context, domain.CartItem) error { return nil }
func (NopObserver) AfterRemove(context.Context, domain.CartItem) {}
func (NopObserver) BeforeQuantityChange(context.Context, domain.CartItem, int) error { return nil }
func (NopObserver) AfterQuantityChange(context.Context, domain.CartItem, int) {}

// RateAdjuster may adjust a freshly fetched rate before it is persisted.
type RateAdjuster interface {
	AdjustRate(ctx context.Context, from, to currency.Unit, rate decimal.Decimal) (decimal.Decimal, error)
}
