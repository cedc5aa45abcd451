package checkout

import (
	"context"
	"fmt"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/nikolayk812/cartprice/internal/pricing"
	"github.com/shopspring/decimal"
)

// CalculateTotals evaluates discounts, then taxes over the discounted lines,
// then sums subtotal, goods tax, shipping and shipping tax. Shipping is zero
// when no active line requires it or shipping is free.
//
// Every tax-inclusive figure comes from the tax service, so
// Subtotal.Incl - Discount.Incl + Shipping.Incl == Total.Incl always holds.
func (s *Session) CalculateTotals(ctx context.Context) (domain.Totals, error) {
	if err := s.load(ctx); err != nil {
		return domain.Totals{}, err
	}
	st := s.state
	cartName := s.cfg.CartName

	lines, err := s.cart.Active(ctx, cartName)
	if err != nil {
		return domain.Totals{}, err
	}

	needsShipping := false
	for _, l := range lines {
		if l.RequiresShipping() {
			needsShipping = true
			break
		}
	}

	var quote *domain.ShippingQuote
	if needsShipping && st.ShippingQuote != nil {
		q := *st.ShippingQuote
		quote = &q
	}

	subtotal, err := s.cart.Subtotal(ctx, cartName, false)
	if err != nil {
		return domain.Totals{}, err
	}

	result, err := s.evaluateDiscounts(ctx, lines, quote, subtotal)
	if err != nil {
		return domain.Totals{}, err
	}
	s.cart.AnnotateDiscounts(cartName, result.ItemDiscounts)

	discounted, err := s.cart.Subtotal(ctx, cartName, true)
	if err != nil {
		return domain.Totals{}, err
	}
	cartDiscount := decimal.Min(domain.NonNegative(result.CartDiscount), discounted)

	shippingExcl := decimal.Zero
	freeShipping := result.FreeShipping || (quote != nil && quote.FreeShipping)
	if quote != nil && !freeShipping {
		shippingExcl = domain.Round2(quote.Net())
	}

	breakdown, err := s.calculateTax(ctx, lines, true, shippingExcl)
	if err != nil {
		return domain.Totals{}, err
	}
	if shippingExcl.IsZero() {
		breakdown.ShippingTax = decimal.Zero
	}

	undiscounted, err := s.calculateTax(ctx, lines, false, decimal.Zero)
	if err != nil {
		return domain.Totals{}, err
	}

	itemDiscount := subtotal.Sub(discounted)
	goodsTax := domain.Round2(breakdown.GoodsTax)
	shippingTax := domain.Round2(breakdown.ShippingTax)
	totalExcl := discounted.Sub(cartDiscount).Add(shippingExcl)

	subtotalIncl := subtotal.Add(domain.Round2(undiscounted.GoodsTax))
	discountedIncl := discounted.Add(goodsTax)

	totals := domain.Totals{
		Currency: s.cfg.Currency,
		Subtotal: domain.Amount{Excl: subtotal, Incl: subtotalIncl},
		Discount: domain.Amount{
			Excl: itemDiscount.Add(cartDiscount),
			Incl: subtotalIncl.Sub(discountedIncl).Add(cartDiscount),
		},
		Shipping:      domain.Amount{Excl: shippingExcl, Incl: shippingExcl.Add(shippingTax)},
		GoodsTax:      goodsTax,
		ShippingTax:   shippingTax,
		TaxByName:     breakdown.ByName,
		Total:         domain.Amount{Excl: totalExcl, Incl: totalExcl.Add(goodsTax).Add(shippingTax)},
		FreeShipping:  freeShipping,
		AppliedRules:  result.Rules,
		ShippingQuote: quote,
		NeedsShipping: needsShipping,
	}
	if totals.ShippingQuote != nil && freeShipping {
		totals.ShippingQuote.Discount = totals.ShippingQuote.Price
	}

	return totals, nil
}

func (s *Session) evaluateDiscounts(ctx context.Context, lines []*pricing.Line, quote *domain.ShippingQuote, subtotal decimal.Decimal) (port.DiscountResult, error) {
	if s.svc.Discounts == nil {
		return port.DiscountResult{}, nil
	}

	pricer := s.cart.Pricer()
	req := port.DiscountRequest{
		PaymentMethodID: s.state.PaymentMethodID,
		ShippingAddress: s.state.Shipping,
		CouponCode:      s.state.CouponCode,
		CustomerID:      s.cfg.CustomerID,
		Subtotal:        subtotal,
		Currency:        s.cfg.Currency,
	}
	if quote != nil {
		req.ShippingOptionID = quote.OptionID
	}

	for _, l := range lines {
		unit, err := pricer.NetUnitPrice(ctx, l, false)
		if err != nil {
			return port.DiscountResult{}, err
		}
		total, err := pricer.LineTotal(ctx, l, false, 0)
		if err != nil {
			return port.DiscountResult{}, err
		}
		req.Items = append(req.Items, port.DiscountItem{
			Key:       l.Key(),
			ProductID: l.Product.ID.String(),
			Quantity:  l.Quantity(),
			UnitPrice: unit,
			LineTotal: total,
		})
	}

	result, err := s.svc.Discounts.Evaluate(ctx, req)
	if err != nil {
		return port.DiscountResult{}, fmt.Errorf("discounts.Evaluate: %w", err)
	}
	return result, nil
}

func (s *Session) calculateTax(ctx context.Context, lines []*pricing.Line, applyDiscount bool, shippingAmount decimal.Decimal) (port.TaxBreakdown, error) {
	if s.svc.Taxes == nil {
		return port.TaxBreakdown{}, nil
	}

	pricer := s.cart.Pricer()
	req := port.TaxRequest{
		ShippingAddress: s.state.Shipping,
		ShippingAmount:  shippingAmount,
		Currency:        s.cfg.Currency,
	}
	if req.ShippingAddress == nil {
		req.ShippingAddress = s.state.Billing
	}

	for _, l := range lines {
		total, err := pricer.LineTotal(ctx, l, applyDiscount, 0)
		if err != nil {
			return port.TaxBreakdown{}, err
		}
		req.Items = append(req.Items, port.TaxItem{Key: l.Key(), TaxClass: l.TaxClass(), Amount: total})
	}

	breakdown, err := s.svc.Taxes.Calculate(ctx, req)
	if err != nil {
		return port.TaxBreakdown{}, fmt.Errorf("taxes.Calculate: %w", err)
	}
	return breakdown, nil
}
