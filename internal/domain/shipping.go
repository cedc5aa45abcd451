package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ShippingQuote is a normalized carrier rate.
type ShippingQuote struct {
	ID           string
	OptionID     string
	ServiceName  string
	Price        decimal.Decimal
	Discount     decimal.Decimal
	Currency     currency.Unit
	FreeShipping bool
	Metadata     map[string]string
}

// Net is the price after the quote's own discount, never negative.
func (q ShippingQuote) Net() decimal.Decimal {
	return NonNegative(q.Price.Sub(q.Discount))
}

type shippingQuoteJSON struct {
	ID           string            `json:"id"`
	OptionID     string            `json:"option_id"`
	ServiceName  string            `json:"service_name"`
	Price        decimal.Decimal   `json:"price"`
	Discount     decimal.Decimal   `json:"discount"`
	Currency     string            `json:"currency"`
	FreeShipping bool              `json:"free_shipping"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (q ShippingQuote) MarshalJSON() ([]byte, error) {
	return json.Marshal(shippingQuoteJSON{
		ID:           q.ID,
		OptionID:     q.OptionID,
		ServiceName:  q.ServiceName,
		Price:        q.Price,
		Discount:     q.Discount,
		Currency:     q.Currency.String(),
		FreeShipping: q.FreeShipping,
		Metadata:     q.Metadata,
	})
}

func (q *ShippingQuote) UnmarshalJSON(data []byte) error {
	var raw shippingQuoteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	unit, err := currency.ParseISO(raw.Currency)
	if err != nil {
		return fmt.Errorf("currency[%s] is not valid: %w", raw.Currency, err)
	}

	*q = ShippingQuote{
		ID:           raw.ID,
		OptionID:     raw.OptionID,
		ServiceName:  raw.ServiceName,
		Price:        raw.Price,
		Discount:     raw.Discount,
		Currency:     unit,
		FreeShipping: raw.FreeShipping,
		Metadata:     raw.Metadata,
	}
	return nil
}

// CartSummary is what a carrier sees of the cart.
type CartSummary struct {
	Value     decimal.Decimal
	Currency  currency.Unit
	Volume    decimal.Decimal
	Weight    decimal.Decimal
	ItemCount int
}
