package checkout

import (
	"context"
	"errors"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/shipping"
)

// Quotes requests rates for the stored destination. The result is reused for
// the rest of the request.
func (s *Session) Quotes(ctx context.Context) (shipping.QuoteSet, error) {
	if s.quotes != nil {
		return *s.quotes, nil
	}
	if s.quoter == nil {
		return shipping.QuoteSet{}, domain.NewNotFound("shipping option", "")
	}
	if err := s.load(ctx); err != nil {
		return shipping.QuoteSet{}, err
	}
	if s.state.Shipping == nil {
		return shipping.QuoteSet{}, domain.ValidationError("shipping info is missing")
	}

	summary, err := s.cart.Summary(ctx, s.cfg.CartName, s.quoter.Currency())
	if err != nil {
		return shipping.QuoteSet{}, err
	}

	set := s.quoter.Quote(ctx, *s.state.Shipping, summary)
	s.quotes = &set
	return set, nil
}

// SelectShippingQuote binds a quote by quote id, or by option id when that
// option produced a single quote.
func (s *Session) SelectShippingQuote(ctx context.Context, id string) (domain.ShippingQuote, error) {
	set, err := s.Quotes(ctx)
	if err != nil {
		return domain.ShippingQuote{}, err
	}

	quote, err := set.Select(id)
	if err != nil {
		return domain.ShippingQuote{}, err
	}

	err = s.update(ctx, func(st *State) error {
		st.ShippingQuote = &quote
		st.NoShipping = false
		return nil
	})
	return quote, err
}

// RefreshShippingQuote re-quotes and rebinds the selected service. When the
// service is gone the selection is dropped and QuoteNoLongerApplicable is
// returned.
func (s *Session) RefreshShippingQuote(ctx context.Context) (domain.ShippingQuote, error) {
	if err := s.load(ctx); err != nil {
		return domain.ShippingQuote{}, err
	}
	prev := s.state.ShippingQuote
	if prev == nil {
		return domain.ShippingQuote{}, domain.NewNotFound("shipping quote", "")
	}

	s.quotes = nil
	set, err := s.Quotes(ctx)
	if err != nil {
		return domain.ShippingQuote{}, err
	}

	quote, err := set.Reselect(*prev)
	if err != nil {
		var gone *domain.QuoteNoLongerApplicableError
		if errors.As(err, &gone) {
			if rerr := s.Reset(ctx, FieldShippingQuote); rerr != nil {
				return domain.ShippingQuote{}, rerr
			}
		}
		return domain.ShippingQuote{}, err
	}

	err = s.update(ctx, func(st *State) error {
		st.ShippingQuote = &quote
		return nil
	})
	return quote, err
}
