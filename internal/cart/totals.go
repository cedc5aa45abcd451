package cart

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/pricing"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Active returns the non-postponed lines of a cart.
func (s *Store) Active(ctx context.Context, cartName string) ([]*pricing.Line, error) {
	lines, err := s.List(ctx, cartName, false)
	if err != nil {
		return nil, err
	}

	active := make([]*pricing.Line, 0, len(lines))
	for _, l := range lines {
		if !l.Item.Postponed {
			active = append(active, l)
		}
	}
	return active, nil
}

func (s *Store) sum(ctx context.Context, cartName string, value func(l *pricing.Line) (decimal.Decimal, error)) (decimal.Decimal, error) {
	lines, err := s.Active(ctx, cartName)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, l := range lines {
		v, err := value(l)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}
	return total, nil
}

// Subtotal sums tax-exclusive line totals.
func (s *Store) Subtotal(ctx context.Context, cartName string, applyCartDiscount bool) (decimal.Decimal, error) {
	return s.sum(ctx, cartName, func(l *pricing.Line) (decimal.Decimal, error) {
		return s.pricer.LineTotal(ctx, l, applyCartDiscount, 0)
	})
}

func (s *Store) TotalPriceNoTax(ctx context.Context, cartName string) (decimal.Decimal, error) {
	return s.Subtotal(ctx, cartName, true)
}

// TotalPrice sums line totals as displayed under the tax policy.
func (s *Store) TotalPrice(ctx context.Context, cartName string, applyCartDiscount bool) (decimal.Decimal, error) {
	return s.sum(ctx, cartName, func(l *pricing.Line) (decimal.Decimal, error) {
		return s.pricer.DisplayLineTotal(ctx, l, applyCartDiscount, false)
	})
}

func (s *Store) TotalPriceWithTax(ctx context.Context, cartName string, applyCartDiscount bool) (decimal.Decimal, error) {
	return s.sum(ctx, cartName, func(l *pricing.Line) (decimal.Decimal, error) {
		return s.pricer.LineTotalWithTax(ctx, l, applyCartDiscount, 0)
	})
}

func (s *Store) TotalTax(ctx context.Context, cartName string, applyCartDiscount bool) (decimal.Decimal, error) {
	return s.sum(ctx, cartName, func(l *pricing.Line) (decimal.Decimal, error) {
		return s.pricer.LineTax(ctx, l, applyCartDiscount, 0)
	})
}

func (s *Store) TotalDiscount(ctx context.Context, cartName string) (decimal.Decimal, error) {
	return s.sum(ctx, cartName, func(l *pricing.Line) (decimal.Decimal, error) {
		return s.pricer.LineDiscount(ctx, l, 0)
	})
}

func (s *Store) TotalWeight(ctx context.Context, cartName string) (decimal.Decimal, error) {
	return s.sum(ctx, cartName, func(l *pricing.Line) (decimal.Decimal, error) {
		return l.Weight(), nil
	})
}

func (s *Store) TotalVolume(ctx context.Context, cartName string) (decimal.Decimal, error) {
	return s.sum(ctx, cartName, func(l *pricing.Line) (decimal.Decimal, error) {
		return l.Volume(), nil
	})
}

// Dimensions approximates the parcel of a stacked cart: the largest length
// and width, and the summed height of every unit.
func (s *Store) Dimensions(ctx context.Context, cartName string) (domain.Dimensions, error) {
	lines, err := s.Active(ctx, cartName)
	if err != nil {
		return domain.Dimensions{}, err
	}

	var d domain.Dimensions
	for _, l := range lines {
		pd := l.Product.Dimensions
		d.Length = decimal.Max(d.Length, pd.Length)
		d.Width = decimal.Max(d.Width, pd.Width)
		d.Height = d.Height.Add(pd.Height.Mul(decimal.NewFromInt(int64(l.Quantity()))))
	}
	return d, nil
}

func (s *Store) ItemCount(ctx context.Context, cartName string) (int, error) {
	lines, err := s.Active(ctx, cartName)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, l := range lines {
		n += l.Quantity()
	}
	return n, nil
}

func (s *Store) RequiresShipping(ctx context.Context, cartName string) (bool, error) {
	lines, err := s.Active(ctx, cartName)
	if err != nil {
		return false, err
	}

	for _, l := range lines {
		if l.RequiresShipping() {
			return true, nil
		}
	}
	return false, nil
}

// Summary describes the shippable lines for rate providers.
func (s *Store) Summary(ctx context.Context, cartName string, cur currency.Unit) (domain.CartSummary, error) {
	lines, err := s.Active(ctx, cartName)
	if err != nil {
		return domain.CartSummary{}, err
	}

	summary := domain.CartSummary{Currency: cur}
	for _, l := range lines {
		if !l.RequiresShipping() {
			continue
		}
		total, err := s.pricer.LineTotal(ctx, l, true, 0)
		if err != nil {
			return domain.CartSummary{}, err
		}
		summary.Value = summary.Value.Add(total)
		summary.Volume = summary.Volume.Add(l.Volume())
		summary.Weight = summary.Weight.Add(l.Weight())
		summary.ItemCount += l.Quantity()
	}
	return summary, nil
}

// AnnotateDiscounts assigns per-unit cart-level discounts to lines by key.
// Annotations live for the lifetime of the store and are never persisted.
func (s *Store) AnnotateDiscounts(cartName string, perUnit map[string]decimal.Decimal) {
	cartName = cartNameOrDefault(cartName)

	d := make(map[string]decimal.Decimal, len(perUnit))
	for k, v := range perUnit {
		d[k] = v
	}
	s.discounts[cartName] = d

	if v, ok := s.views[cartName]; ok {
		for _, l := range v.lines {
			l.Item.CartDiscount = d[l.Key()]
		}
	}
}

// Fingerprint hashes product, quantity, postponed flag and unit price of
// every line plus the cart's undiscounted subtotal. Cart-level discounts do
// not affect it.
func (s *Store) Fingerprint(ctx context.Context, cartName string) (string, error) {
	lines, err := s.List(ctx, cartName, false)
	if err != nil {
		return "", err
	}

	entries := make([]string, 0, len(lines))
	aggregate := decimal.Zero
	for _, l := range lines {
		unit, err := s.pricer.UnitPrice(ctx, l, true)
		if err != nil {
			return "", err
		}
		entries = append(entries, fmt.Sprintf("%s|%d|%t|%s", l.Product.ID, l.Quantity(), l.Item.Postponed, unit.StringFixed(2)))

		if !l.Item.Postponed {
			total, err := s.pricer.LineTotal(ctx, l, false, 0)
			if err != nil {
				return "", err
			}
			aggregate = aggregate.Add(total)
		}
	}
	sort.Strings(entries)

	h := xxhash.New()
	_, _ = h.WriteString(strings.Join(entries, "\n"))
	_, _ = h.WriteString("\n" + aggregate.StringFixed(2))

	return fmt.Sprintf("%016x", h.Sum64()), nil
}
