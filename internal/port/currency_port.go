package port

import (
	"context"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type RateProvider interface {
	FetchRate(ctx context.Context, from, to currency.Unit) (decimal.Decimal, error)
}

type RateRepository interface {
	// LatestRate returns false when no rate was ever stored for the pair.
	LatestRate(ctx context.Context, from, to currency.Unit) (domain.CurrencyRate, bool, error)
	SaveRate(ctx context.Context, rate domain.CurrencyRate) error
}
