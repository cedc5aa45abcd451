package shipping

import (
	"context"
	"fmt"
	"maps"

	"github.com/cespare/xxhash/v2"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// RateConverter is satisfied by *currency.Converter.
type RateConverter interface {
	Convert(ctx context.Context, value decimal.Decimal, from, to currency.Unit, round bool) (decimal.Decimal, error)
}

// QuoteID identifies a quote by option and service name, so the same service
// keeps its id across repeated rate requests.
func QuoteID(optionID, serviceName string) string {
	return fmt.Sprintf("%s_%016x", optionID, xxhash.Sum64String(serviceName))
}

// NewQuote normalizes a raw carrier rate. The discount is clamped to
// [0, price].
func NewQuote(optionID string, raw port.RawRate) (domain.ShippingQuote, error) {
	if raw.Service == "" {
		return domain.ShippingQuote{}, domain.ValidationError("rate without service name")
	}
	if raw.Price.IsNegative() {
		return domain.ShippingQuote{}, domain.ValidationError("service %q has negative price %s", raw.Service, raw.Price)
	}

	unit, err := currency.ParseISO(raw.Currency)
	if err != nil {
		return domain.ShippingQuote{}, domain.ValidationError("currency[%s] is not valid: %v", raw.Currency, err)
	}

	discount := domain.NonNegative(raw.Discount)
	if discount.GreaterThan(raw.Price) {
		discount = raw.Price
	}

	return domain.ShippingQuote{
		ID:           QuoteID(optionID, raw.Service),
		OptionID:     optionID,
		ServiceName:  raw.Service,
		Price:        raw.Price,
		Discount:     discount,
		Currency:     unit,
		FreeShipping: raw.FreeShipping,
		Metadata:     maps.Clone(raw.Metadata),
	}, nil
}

// ConvertQuote rewrites price and discount into target. It is a no-op when
// the quote is already in target.
func ConvertQuote(ctx context.Context, conv RateConverter, q domain.ShippingQuote, target currency.Unit) (domain.ShippingQuote, error) {
	if q.Currency == target {
		return q, nil
	}

	price, err := conv.Convert(ctx, q.Price, q.Currency, target, true)
	if err != nil {
		return domain.ShippingQuote{}, fmt.Errorf("convert price: %w", err)
	}
	discount, err := conv.Convert(ctx, q.Discount, q.Currency, target, true)
	if err != nil {
		return domain.ShippingQuote{}, fmt.Errorf("convert discount: %w", err)
	}
	if discount.GreaterThan(price) {
		discount = price
	}

	q.Price = price
	q.Discount = discount
	q.Currency = target
	return q, nil
}

// QuoteSet is the result of one quoting round. Diagnostics holds a hint per
// option whose provider failed or returned unusable rates.
type QuoteSet struct {
	Quotes      []domain.ShippingQuote
	Diagnostics map[string]string
}

func (s QuoteSet) ForOption(optionID string) []domain.ShippingQuote {
	var out []domain.ShippingQuote
	for _, q := range s.Quotes {
		if q.OptionID == optionID {
			out = append(out, q)
		}
	}
	return out
}

// Select resolves id as an exact quote id first. A bare option id is accepted
// only when that option produced exactly one quote.
func (s QuoteSet) Select(id string) (domain.ShippingQuote, error) {
	for _, q := range s.Quotes {
		if q.ID == id {
			return q, nil
		}
	}

	if byOption := s.ForOption(id); len(byOption) == 1 {
		return byOption[0], nil
	}

	return domain.ShippingQuote{}, domain.NewNotFound("shipping quote", id)
}

// Reselect finds prev in a fresh rate set.
func (s QuoteSet) Reselect(prev domain.ShippingQuote) (domain.ShippingQuote, error) {
	for _, q := range s.Quotes {
		if q.ID == prev.ID {
			return q, nil
		}
	}
	return domain.ShippingQuote{}, &domain.QuoteNoLongerApplicableError{QuoteID: prev.ID}
}
