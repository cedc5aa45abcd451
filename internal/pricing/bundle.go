package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// Full-bundle figures are per single bundle: the master's value for quantity 1
// plus each component's value for its per-bundle quantity.

func (p *Pricer) BundlePrice(ctx context.Context, master *Line, applyCartDiscount bool) (decimal.Decimal, error) {
	return p.sumBundle(master, func(l *Line, qty int) (decimal.Decimal, error) {
		return p.LineTotal(ctx, l, applyCartDiscount, qty)
	})
}

func (p *Pricer) BundleDiscount(ctx context.Context, master *Line) (decimal.Decimal, error) {
	return p.sumBundle(master, func(l *Line, qty int) (decimal.Decimal, error) {
		return p.LineDiscount(ctx, l, qty)
	})
}

func (p *Pricer) BundleTax(ctx context.Context, master *Line, applyCartDiscount bool) (decimal.Decimal, error) {
	return p.sumBundle(master, func(l *Line, qty int) (decimal.Decimal, error) {
		return p.LineTax(ctx, l, applyCartDiscount, qty)
	})
}

func (p *Pricer) sumBundle(master *Line, value func(l *Line, qty int) (decimal.Decimal, error)) (decimal.Decimal, error) {
	total, err := value(master, 1)
	if err != nil {
		return decimal.Zero, err
	}

	for _, c := range master.Components {
		qty := c.PerBundleQuantity()
		if qty <= 0 {
			continue
		}
		v, err := value(c, qty)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}

	return total, nil
}
