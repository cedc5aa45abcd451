package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/shopspring/decimal"
)

// ProductCatalog returns domain.ErrNotFound (possibly wrapped) for unknown products.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (domain.Product, error)
}

// CatalogPriceRules computes the per-unit sale reduction of catalog price rules.
type CatalogPriceRules interface {
	Reduction(ctx context.Context, product domain.Product, variant *domain.Variant, unitPrice decimal.Decimal) (decimal.Decimal, error)
}

type PurchaseHistory interface {
	PurchasedQuantity(ctx context.Context, customerID string, productID uuid.UUID) (int, error)
}
