package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type CurrencyRate struct {
	From      currency.Unit
	To        currency.Unit
	Rate      decimal.Decimal
	FetchedAt time.Time
}

func (r CurrencyRate) FreshAt(now time.Time, interval time.Duration) bool {
	return now.Sub(r.FetchedAt) < interval
}
