package checkout

import (
	"context"

	"github.com/nikolayk812/cartprice/internal/domain"
)

// StepInput is the data posted for the current step.
type StepInput struct {
	// NoSave re-enters the flow without storing the posted data.
	NoSave bool
	// SkipTo jumps to a step instead of the next one.
	SkipTo Step

	Billing         *domain.Address
	Shipping        *domain.Address
	ShippingQuoteID string
	PaymentMethodID string
	CouponCode      *string
	Notes           *string
}

// Advance stores the posted data of the current step, moves to the next step
// and returns the totals for it. The shipping method step is skipped when no
// active line requires shipping. A cart changed since the last step restarts
// the checkout and fails with ErrStaleState without storing anything.
func (s *Session) Advance(ctx context.Context, in StepInput) (Step, domain.Totals, error) {
	if err := s.load(ctx); err != nil {
		return "", domain.Totals{}, err
	}
	if err := s.guard(ctx); err != nil {
		return s.state.currentStep(), domain.Totals{}, err
	}
	current := s.state.currentStep()

	if !in.NoSave {
		if err := s.saveStep(ctx, current, in); err != nil {
			return current, domain.Totals{}, err
		}
	}

	needsShipping, err := s.cart.RequiresShipping(ctx, s.cfg.CartName)
	if err != nil {
		return current, domain.Totals{}, err
	}

	next := in.SkipTo
	if next == "" {
		next = following(current)
	} else if !next.Valid() {
		return current, domain.Totals{}, domain.ValidationError("unknown checkout step %q", next)
	}

	err = s.update(ctx, func(st *State) error {
		if next == StepShippingMethod && !needsShipping {
			next = StepPaymentMethod
		}
		if !needsShipping {
			st.ShippingQuote = nil
			st.NoShipping = true
		} else {
			st.NoShipping = false
		}
		st.Step = next
		return nil
	})
	if err != nil {
		return current, domain.Totals{}, err
	}

	totals, err := s.CalculateTotals(ctx)
	if err != nil {
		return next, domain.Totals{}, err
	}
	return next, totals, nil
}

// GoBack returns to the previous step without storing anything.
func (s *Session) GoBack(ctx context.Context) (Step, error) {
	if err := s.load(ctx); err != nil {
		return "", err
	}

	needsShipping, err := s.cart.RequiresShipping(ctx, s.cfg.CartName)
	if err != nil {
		return "", err
	}

	prev := preceding(s.state.currentStep())
	if prev == StepShippingMethod && !needsShipping {
		prev = preceding(prev)
	}

	err = s.update(ctx, func(st *State) error {
		st.Step = prev
		return nil
	})
	return prev, err
}

func (s *Session) saveStep(ctx context.Context, step Step, in StepInput) error {
	switch step {
	case StepBillingInfo:
		if in.Billing == nil {
			return domain.ValidationError("billing info is missing")
		}
		if err := s.SetBillingInfo(ctx, *in.Billing); err != nil {
			return err
		}
		if in.Shipping != nil {
			return s.SetShippingInfo(ctx, *in.Shipping)
		}
	case StepShippingInfo:
		if in.Shipping == nil {
			return domain.ValidationError("shipping info is missing")
		}
		return s.SetShippingInfo(ctx, *in.Shipping)
	case StepShippingMethod:
		if in.ShippingQuoteID == "" {
			return domain.ValidationError("shipping method is missing")
		}
		_, err := s.SelectShippingQuote(ctx, in.ShippingQuoteID)
		return err
	case StepPaymentMethod:
		if in.PaymentMethodID == "" {
			return domain.ValidationError("payment method is missing")
		}
		if err := s.SetPaymentMethod(ctx, in.PaymentMethodID); err != nil {
			return err
		}
		if in.CouponCode != nil {
			return s.SetCouponCode(ctx, *in.CouponCode)
		}
	case StepReview:
		if in.CouponCode != nil {
			if err := s.SetCouponCode(ctx, *in.CouponCode); err != nil {
				return err
			}
		}
		if in.Notes != nil {
			return s.SetNotes(ctx, *in.Notes)
		}
	}
	return nil
}

func following(step Step) Step {
	i := step.index()
	if i < 0 || i == len(steps)-1 {
		return StepPay
	}
	return steps[i+1]
}

func preceding(step Step) Step {
	i := step.index()
	if i <= 0 {
		return StepBillingInfo
	}
	return steps[i-1]
}
