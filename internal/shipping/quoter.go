package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/currency"
)

const DefaultProviderTimeout = 10 * time.Second

// Option is a configured shipping method backed by a provider.
type Option struct {
	ID       string
	Name     string
	Enabled  bool
	Provider port.ShippingProvider
}

type Quoter struct {
	options   []Option
	converter RateConverter
	target    currency.Unit
	timeout   time.Duration
	logger    *zap.Logger
}

func NewQuoter(options []Option, converter RateConverter, target currency.Unit, timeout time.Duration, logger *zap.Logger) (*Quoter, error) {
	if converter == nil {
		return nil, fmt.Errorf("converter is nil")
	}
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quoter{
		options:   options,
		converter: converter,
		target:    target,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (q *Quoter) Currency() currency.Unit {
	return q.target
}

type providerResult struct {
	rates []port.RawRate
	err   error
}

// Quote asks every enabled option for rates. A failing provider only removes
// its own quotes and leaves a diagnostic; it never fails the whole round.
func (q *Quoter) Quote(ctx context.Context, dest domain.Address, cart domain.CartSummary) QuoteSet {
	set := QuoteSet{Diagnostics: map[string]string{}}
	if cart.ItemCount == 0 {
		return set
	}

	var enabled []Option
	for _, opt := range q.options {
		if opt.Enabled && opt.Provider != nil {
			enabled = append(enabled, opt)
		}
	}

	results := make([]providerResult, len(enabled))
	req := port.RateRequest{Destination: dest, Cart: cart}

	var g errgroup.Group
	for i, opt := range enabled {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, q.timeout)
			defer cancel()

			rates, err := opt.Provider.Rates(pctx, req)
			if err == nil && pctx.Err() != nil {
				err = pctx.Err()
			}
			results[i] = providerResult{rates: rates, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, opt := range enabled {
		res := results[i]
		if res.err != nil {
			hint := "provider unavailable"
			if errors.Is(res.err, context.DeadlineExceeded) {
				hint = "provider timed out"
			}
			set.Diagnostics[opt.ID] = hint
			q.logger.Warn("shipping provider failed",
				zap.String("option", opt.ID), zap.Error(&domain.ProviderError{Provider: opt.ID, Err: res.err}))
			continue
		}

		for _, raw := range res.rates {
			quote, err := NewQuote(opt.ID, raw)
			if err != nil {
				set.Diagnostics[opt.ID] = err.Error()
				q.logger.Warn("skipping malformed rate", zap.String("option", opt.ID), zap.Error(err))
				continue
			}

			quote, err = ConvertQuote(ctx, q.converter, quote, q.target)
			if err != nil {
				set.Diagnostics[opt.ID] = "rate could not be converted to " + q.target.String()
				q.logger.Warn("skipping unconvertible rate",
					zap.String("option", opt.ID), zap.String("service", raw.Service), zap.Error(err))
				continue
			}

			set.Quotes = append(set.Quotes, quote)
		}
	}

	return set
}

// Labels delegates label generation to the option's provider, when supported.
func (q *Quoter) Labels(ctx context.Context, optionID, orderID string) ([]port.Label, error) {
	for _, opt := range q.options {
		if opt.ID != optionID {
			continue
		}
		gen, ok := opt.Provider.(port.LabelGenerator)
		if !ok {
			return nil, domain.NewNotFound("label generator for shipping option", optionID)
		}

		labels, err := gen.Labels(ctx, orderID)
		if err != nil {
			return nil, &domain.ProviderError{Provider: optionID, Err: fmt.Errorf("gen.Labels: %w", err)}
		}
		return labels, nil
	}
	return nil, domain.NewNotFound("shipping option", optionID)
}
