package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Amount carries both renditions of a figure, since the "prices include tax"
// policy may differ per customer group.
type Amount struct {
	Excl decimal.Decimal
	Incl decimal.Decimal
}

type AppliedRule struct {
	ID     string
	Name   string
	Amount decimal.Decimal
}

type Totals struct {
	Currency currency.Unit

	Subtotal      Amount
	Discount      Amount
	Shipping      Amount
	GoodsTax      decimal.Decimal
	ShippingTax   decimal.Decimal
	TaxByName     map[string]decimal.Decimal
	Total         Amount
	FreeShipping  bool
	AppliedRules  []AppliedRule
	ShippingQuote *ShippingQuote
	NeedsShipping bool
}

func (t Totals) Tax() decimal.Decimal {
	return t.GoodsTax.Add(t.ShippingTax)
}
