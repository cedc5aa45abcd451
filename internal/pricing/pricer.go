// Package pricing computes cart line prices.
//
// A unit price is composed in a fixed order:
//
//  1. price source: item override, override hooks, bundle component price,
//     or the quantity-tiered list price of the product or its variant
//  2. extra options, when requested
//  3. catalog sale reduction
//
// An overridden price is used as is: steps 2 and 3 are skipped for it.
//  4. cart-level discount, when requested
//  5. tax, when prices are displayed tax-inclusive or tax is forced
//
// Line totals are rounded to cents once, after multiplying by quantity.
package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/shopspring/decimal"
)

type Policy struct {
	PricesIncludeTax bool
	// CustomerID enables per-customer tier pricing when set.
	CustomerID string
}

type Option func(*Pricer)

func WithCatalogRules(rules port.CatalogPriceRules) Option {
	return func(p *Pricer) { p.rules = rules }
}

func WithPurchaseHistory(history port.PurchaseHistory) Option {
	return func(p *Pricer) { p.history = history }
}

func WithOverrides(overrides ...port.PriceOverrideProvider) Option {
	return func(p *Pricer) { p.overrides = append(p.overrides, overrides...) }
}

// Pricer is request-scoped.
type Pricer struct {
	tax       port.TaxService
	rules     port.CatalogPriceRules
	history   port.PurchaseHistory
	overrides []port.PriceOverrideProvider
	policy    Policy

	purchased map[uuid.UUID]int
}

func NewPricer(tax port.TaxService, policy Policy, opts ...Option) *Pricer {
	p := &Pricer{
		tax:       tax,
		policy:    policy,
		purchased: map[uuid.UUID]int{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pricer) Policy() Policy {
	return p.policy
}

// EffectiveQuantity is the quantity used for tier lookup. For products tiered
// per customer it includes the customer's earlier purchases.
func (p *Pricer) EffectiveQuantity(ctx context.Context, l *Line) (int, error) {
	qty := l.Item.Quantity
	if !l.Product.TieredPerCustomer || p.history == nil || p.policy.CustomerID == "" {
		return qty, nil
	}

	bought, ok := p.purchased[l.Product.ID]
	if !ok {
		var err error
		bought, err = p.history.PurchasedQuantity(ctx, p.policy.CustomerID, l.Product.ID)
		if err != nil {
			return 0, fmt.Errorf("history.PurchasedQuantity: %w", err)
		}
		p.purchased[l.Product.ID] = bought
	}

	return qty + bought, nil
}

// BasePrice is the unit price from the price source, without extras.
func (p *Pricer) BasePrice(ctx context.Context, l *Line) (price decimal.Decimal, overridden bool, err error) {
	if l.Item.PriceOverride != nil {
		return *l.Item.PriceOverride, true, nil
	}

	for _, o := range p.overrides {
		price, ok, err := o.OverridePrice(ctx, l.Item, l.Product)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("o.OverridePrice: %w", err)
		}
		if ok {
			return price, true, nil
		}
	}

	if l.Master != nil && l.Component != nil && l.Component.Price != nil {
		return *l.Component.Price, false, nil
	}

	qty, err := p.EffectiveQuantity(ctx, l)
	if err != nil {
		return decimal.Zero, false, err
	}

	return domain.TierPrice(l.priceTiers(), qty), false, nil
}

func (p *Pricer) ExtrasPrice(l *Line) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range l.Extras {
		sum = sum.Add(e.Price)
	}
	return sum
}

// UnitPrice is the base price plus, when includeExtras is set, the extras.
// Overridden prices never get extras added.
func (p *Pricer) UnitPrice(ctx context.Context, l *Line, includeExtras bool) (decimal.Decimal, error) {
	base, overridden, err := p.BasePrice(ctx, l)
	if err != nil {
		return decimal.Zero, err
	}
	if includeExtras && !overridden {
		base = base.Add(p.ExtrasPrice(l))
	}
	return base, nil
}

// CatalogReduction is the per-unit sale reduction; zero for overridden prices.
func (p *Pricer) CatalogReduction(ctx context.Context, l *Line) (decimal.Decimal, error) {
	base, overridden, err := p.BasePrice(ctx, l)
	if err != nil {
		return decimal.Zero, err
	}
	if overridden || p.rules == nil {
		return decimal.Zero, nil
	}

	unit := base.Add(p.ExtrasPrice(l))
	reduction, err := p.rules.Reduction(ctx, l.Product, l.Variant, unit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rules.Reduction: %w", err)
	}

	reduction = domain.NonNegative(reduction)
	if reduction.GreaterThan(unit) {
		reduction = unit
	}
	return reduction, nil
}

// NetUnitPrice is the unit price after catalog reduction and, optionally,
// the cart-level discount. It is not rounded.
func (p *Pricer) NetUnitPrice(ctx context.Context, l *Line, applyCartDiscount bool) (decimal.Decimal, error) {
	unit, err := p.UnitPrice(ctx, l, true)
	if err != nil {
		return decimal.Zero, err
	}
	reduction, err := p.CatalogReduction(ctx, l)
	if err != nil {
		return decimal.Zero, err
	}

	net := unit.Sub(reduction)
	if applyCartDiscount {
		net = net.Sub(l.Item.CartDiscount)
	}
	return domain.NonNegative(net), nil
}

// LineTotal is (unit - catalog reduction - cart discount) * quantity, rounded
// to cents. A non-positive quantity means the line's own quantity.
func (p *Pricer) LineTotal(ctx context.Context, l *Line, applyCartDiscount bool, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		quantity = l.Item.Quantity
	}

	net, err := p.NetUnitPrice(ctx, l, applyCartDiscount)
	if err != nil {
		return decimal.Zero, err
	}

	return domain.Round2(net.Mul(decimal.NewFromInt(int64(quantity)))), nil
}

// LineDiscount is the cart-level discount amount of the line.
func (p *Pricer) LineDiscount(ctx context.Context, l *Line, quantity int) (decimal.Decimal, error) {
	full, err := p.LineTotal(ctx, l, false, quantity)
	if err != nil {
		return decimal.Zero, err
	}
	discounted, err := p.LineTotal(ctx, l, true, quantity)
	if err != nil {
		return decimal.Zero, err
	}
	return full.Sub(discounted), nil
}

func (p *Pricer) LineTax(ctx context.Context, l *Line, applyCartDiscount bool, quantity int) (decimal.Decimal, error) {
	total, err := p.LineTotal(ctx, l, applyCartDiscount, quantity)
	if err != nil {
		return decimal.Zero, err
	}
	return p.taxOn(ctx, l, total)
}

func (p *Pricer) LineTotalWithTax(ctx context.Context, l *Line, applyCartDiscount bool, quantity int) (decimal.Decimal, error) {
	total, err := p.LineTotal(ctx, l, applyCartDiscount, quantity)
	if err != nil {
		return decimal.Zero, err
	}
	tax, err := p.taxOn(ctx, l, total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Add(tax), nil
}

// DisplayLineTotal adds tax when the tax-inclusive policy is active or
// forceTax is set.
func (p *Pricer) DisplayLineTotal(ctx context.Context, l *Line, applyCartDiscount, forceTax bool) (decimal.Decimal, error) {
	if p.policy.PricesIncludeTax || forceTax {
		return p.LineTotalWithTax(ctx, l, applyCartDiscount, 0)
	}
	return p.LineTotal(ctx, l, applyCartDiscount, 0)
}

func (p *Pricer) DisplayUnitPrice(ctx context.Context, l *Line, forceTax bool) (decimal.Decimal, error) {
	net, err := p.NetUnitPrice(ctx, l, false)
	if err != nil {
		return decimal.Zero, err
	}
	net = domain.Round2(net)
	if !p.policy.PricesIncludeTax && !forceTax {
		return net, nil
	}

	tax, err := p.taxOn(ctx, l, net)
	if err != nil {
		return decimal.Zero, err
	}
	return net.Add(tax), nil
}

func (p *Pricer) taxOn(ctx context.Context, l *Line, amount decimal.Decimal) (decimal.Decimal, error) {
	if p.tax == nil || amount.IsZero() {
		return decimal.Zero, nil
	}
	tax, err := p.tax.ItemTax(ctx, l.TaxClass(), amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tax.ItemTax: %w", err)
	}
	return tax, nil
}
