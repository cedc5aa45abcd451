package port

import (
	"context"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/shopspring/decimal"
)

type RateRequest struct {
	Destination domain.Address
	Cart        domain.CartSummary
}

// RawRate is a carrier rate as returned by a provider, before normalization.
type RawRate struct {
	Service      string
	Price        decimal.Decimal
	Discount     decimal.Decimal
	Currency     string
	FreeShipping bool
	Metadata     map[string]string
}

type ShippingProvider interface {
	Rates(ctx context.Context, req RateRequest) ([]RawRate, error)
}

type Label struct {
	TrackingNumber string
	Format         string
	Data           []byte
}

// LabelGenerator is an optional capability of a ShippingProvider.
type LabelGenerator interface {
	Labels(ctx context.Context, orderID string) ([]Label, error)
}
