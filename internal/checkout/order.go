package checkout

import (
	"context"
	"fmt"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"go.uber.org/zap"
)

// PlaceOrder creates the order from the cart and checkout state. Every
// lookup happens before the order service is called, so a missing payment
// method or shipping quote never leaves a partial order behind.
func (s *Session) PlaceOrder(ctx context.Context) (string, error) {
	if err := s.guard(ctx); err != nil {
		return "", err
	}
	st := s.state

	if st.Billing == nil {
		return "", domain.ValidationError("billing info is missing")
	}

	needsShipping, err := s.cart.RequiresShipping(ctx, s.cfg.CartName)
	if err != nil {
		return "", err
	}
	if needsShipping {
		if st.Shipping == nil {
			return "", domain.ValidationError("shipping info is missing")
		}
		if st.ShippingQuote == nil {
			return "", domain.NewNotFound("shipping quote", "")
		}
		if _, err := s.RefreshShippingQuote(ctx); err != nil {
			return "", err
		}
	}

	if s.state.PaymentMethodID == "" {
		return "", domain.NewNotFound("payment method", "")
	}
	pm, err := s.svc.Payments.GetPaymentMethod(ctx, s.state.PaymentMethodID)
	if err != nil {
		return "", fmt.Errorf("payments.GetPaymentMethod: %w", err)
	}

	lines, err := s.cart.Active(ctx, s.cfg.CartName)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", domain.ValidationError("cart is empty")
	}

	totals, err := s.CalculateTotals(ctx)
	if err != nil {
		return "", err
	}

	customerID := s.cfg.CustomerID
	if customerID == "" && s.cfg.RegisterGuests && s.state.GuestPassword != "" && s.svc.Customers != nil {
		customerID, err = s.svc.Customers.Register(ctx, *s.state.Billing, s.state.GuestPassword)
		if err != nil {
			return "", fmt.Errorf("customers.Register: %w", err)
		}
	}

	req := port.OrderRequest{
		CustomerID:    customerID,
		Billing:       *s.state.Billing,
		Shipping:      s.state.Shipping,
		ShippingQuote: totals.ShippingQuote,
		PaymentMethod: pm,
		CouponCode:    s.state.CouponCode,
		Notes:         s.state.Notes,
		Totals:        totals,
		CustomFields:  s.state.CustomFields,
	}
	if !needsShipping {
		req.Shipping = nil
	}
	for _, l := range lines {
		req.Items = append(req.Items, l.Item)
	}

	orderID, err := s.svc.Orders.CreateOrder(ctx, req)
	if err != nil {
		return "", fmt.Errorf("orders.CreateOrder: %w", err)
	}

	s.logger.Info("order placed",
		zap.String("session_id", s.id),
		zap.String("order_id", orderID),
		zap.String("total", totals.Total.Incl.StringFixed(2)))

	if s.cfg.EmptyCartOnOrder {
		if err := s.cart.Clear(ctx, s.cfg.CartName); err != nil {
			return orderID, err
		}
	}

	err = s.Reset(ctx,
		FieldNotes, FieldCouponCode, FieldGuestPassword, FieldShippingQuote,
		FieldPaymentMethod, FieldCartID, FieldStep, FieldCustomFields)
	return orderID, err
}
