package pricing

import (
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/shopspring/decimal"
)

// Line is a hydrated cart item: the stored record plus the catalog data
// needed to price it.
type Line struct {
	Item    domain.CartItem
	Product domain.Product
	Variant *domain.Variant
	Extras  []domain.ExtraOption

	// Set for dependent bundle items.
	Master    *Line
	Component *domain.BundleComponent

	Components []*Line
}

func (l *Line) Key() string {
	return l.Item.Key
}

func (l *Line) Quantity() int {
	return l.Item.Quantity
}

func (l *Line) IsBundleMaster() bool {
	return len(l.Components) > 0
}

// PerBundleQuantity is the component's quantity inside one bundle.
func (l *Line) PerBundleQuantity() int {
	if l.Master == nil {
		return l.Item.Quantity
	}
	q, _ := PerBundleQuantity(l.Item.Quantity, l.Master.Item.Quantity)
	return q
}

// PerBundleQuantity derives the per-bundle quantity of a component from its
// stored quantity. The result is rounded half away from zero; exact is false
// when stored is not a multiple of master.
func PerBundleQuantity(stored, master int) (perBundle int, exact bool) {
	if master <= 0 {
		return stored, false
	}
	q := decimal.NewFromInt(int64(stored)).Div(decimal.NewFromInt(int64(master))).Round(0)
	return int(q.IntPart()), stored%master == 0
}

func (l *Line) TaxClass() string {
	return l.Product.TaxClass
}

func (l *Line) RequiresShipping() bool {
	return l.Product.RequiresShipping
}

// UnitWeight prefers the variant's weight.
func (l *Line) UnitWeight() decimal.Decimal {
	if l.Variant != nil && l.Variant.Weight != nil {
		return *l.Variant.Weight
	}
	return l.Product.Weight
}

func (l *Line) Weight() decimal.Decimal {
	return l.UnitWeight().Mul(decimal.NewFromInt(int64(l.Item.Quantity)))
}

func (l *Line) Volume() decimal.Decimal {
	return l.Product.Volume.Mul(decimal.NewFromInt(int64(l.Item.Quantity)))
}

func (l *Line) priceTiers() []domain.PriceTier {
	if l.Variant != nil && len(l.Variant.PriceTiers) > 0 {
		return l.Variant.PriceTiers
	}
	return l.Product.PriceTiers
}
