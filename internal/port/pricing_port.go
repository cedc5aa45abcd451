package port

import (
	"context"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type DiscountItem struct {
	Key       string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type DiscountRequest struct {
	PaymentMethodID  string
	ShippingOptionID string
	Items            []DiscountItem
	ShippingAddress  *domain.Address
	CouponCode       string
	CustomerID       string
	Subtotal         decimal.Decimal
	Currency         currency.Unit
}

type DiscountResult struct {
	// ItemDiscounts maps item key to a per-unit discount.
	ItemDiscounts map[string]decimal.Decimal
	CartDiscount  decimal.Decimal
	FreeShipping  bool
	Rules         []domain.AppliedRule
}

type DiscountService interface {
	Evaluate(ctx context.Context, req DiscountRequest) (DiscountResult, error)
}

type TaxItem struct {
	Key      string
	TaxClass string
	Amount   decimal.Decimal
}

type TaxRequest struct {
	Items           []TaxItem
	ShippingAddress *domain.Address
	ShippingAmount  decimal.Decimal
	Currency        currency.Unit
}

type TaxBreakdown struct {
	GoodsTax    decimal.Decimal
	ShippingTax decimal.Decimal
	ByName      map[string]decimal.Decimal
}

type TaxService interface {
	// ItemTax returns the tax on amount for a single line of the given class.
	ItemTax(ctx context.Context, taxClass string, amount decimal.Decimal) (decimal.Decimal, error)
	Calculate(ctx context.Context, req TaxRequest) (TaxBreakdown, error)
}
