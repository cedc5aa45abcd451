// Package currency converts amounts between currencies using cached rates.
//
// A Converter is request-scoped: its in-process cache lives only as long as
// the Converter. Rates survive across requests only through the RateRepository.
package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

const (
	DefaultRefreshInterval = 24 * time.Hour
	DefaultProviderTimeout = 5 * time.Second
)

type Config struct {
	RefreshInterval time.Duration
	// CronMode trusts the latest persisted rate regardless of its age; an
	// external job keeps the rates current.
	CronMode        bool
	ProviderTimeout time.Duration
}

type Option func(*Converter)

func WithAdjusters(adjusters ...port.RateAdjuster) Option {
	return func(c *Converter) { c.adjusters = append(c.adjusters, adjusters...) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(c *Converter) { c.nowFunc = now }
}

type pair struct {
	from, to currency.Unit
}

type Converter struct {
	provider  port.RateProvider
	repo      port.RateRepository
	adjusters []port.RateAdjuster
	cfg       Config
	cache     map[pair]decimal.Decimal
	nowFunc   func() time.Time
	logger    *zap.Logger
}

func NewConverter(provider port.RateProvider, repo port.RateRepository, cfg Config, opts ...Option) *Converter {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}

	c := &Converter{
		provider: provider,
		repo:     repo,
		cfg:      cfg,
		cache:    map[pair]decimal.Decimal{},
		nowFunc:  time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRate returns the multiplier converting from into to.
func (c *Converter) GetRate(ctx context.Context, from, to currency.Unit) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := pair{from: from, to: to}
	if rate, ok := c.cache[key]; ok {
		return rate, nil
	}

	stored, found, err := c.repo.LatestRate(ctx, from, to)
	if err != nil {
		c.logger.Warn("persisted rate lookup failed",
			zap.Stringer("from", from), zap.Stringer("to", to), zap.Error(err))
		found = false
	}

	if found && (c.cfg.CronMode || stored.FreshAt(c.nowFunc(), c.cfg.RefreshInterval)) {
		c.cache[key] = stored.Rate
		return stored.Rate, nil
	}

	fetched, err := c.fetch(ctx, from, to)
	if err != nil {
		if found {
			c.logger.Warn("rate provider failed, using last known rate",
				zap.Stringer("from", from), zap.Stringer("to", to),
				zap.Time("fetched_at", stored.FetchedAt), zap.Error(err))
			c.cache[key] = stored.Rate
			return stored.Rate, nil
		}
		return decimal.Zero, &domain.ProviderError{Provider: "currency", Err: err}
	}

	c.cache[key] = fetched.Rate
	return fetched.Rate, nil
}

// Refresh bypasses both caches, asks the provider and persists the result.
func (c *Converter) Refresh(ctx context.Context, from, to currency.Unit) (domain.CurrencyRate, error) {
	if from == to {
		return domain.CurrencyRate{From: from, To: to, Rate: decimal.NewFromInt(1), FetchedAt: c.nowFunc()}, nil
	}

	rate, err := c.fetch(ctx, from, to)
	if err != nil {
		return domain.CurrencyRate{}, &domain.ProviderError{Provider: "currency", Err: err}
	}

	c.cache[pair{from: from, to: to}] = rate.Rate
	return rate, nil
}

func (c *Converter) fetch(ctx context.Context, from, to currency.Unit) (domain.CurrencyRate, error) {
	if c.provider == nil {
		return domain.CurrencyRate{}, fmt.Errorf("no rate provider configured")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.ProviderTimeout)
	defer cancel()

	rate, err := c.provider.FetchRate(fetchCtx, from, to)
	if err != nil {
		return domain.CurrencyRate{}, fmt.Errorf("provider.FetchRate: %w", err)
	}
	if !rate.IsPositive() {
		return domain.CurrencyRate{}, fmt.Errorf("provider returned non-positive rate %s for %s/%s", rate, from, to)
	}

	for _, adj := range c.adjusters {
		rate, err = adj.AdjustRate(ctx, from, to, rate)
		if err != nil {
			return domain.CurrencyRate{}, fmt.Errorf("adjuster.AdjustRate: %w", err)
		}
	}

	result := domain.CurrencyRate{From: from, To: to, Rate: rate, FetchedAt: c.nowFunc()}
	if err := c.repo.SaveRate(ctx, result); err != nil {
		c.logger.Warn("persisting rate failed",
			zap.Stringer("from", from), zap.Stringer("to", to), zap.Error(err))
	}

	return result, nil
}

// Convert multiplies value by the from->to rate. Zero short-circuits
// without a rate lookup.
func (c *Converter) Convert(ctx context.Context, value decimal.Decimal, from, to currency.Unit, round bool) (decimal.Decimal, error) {
	if value.IsZero() {
		return decimal.Zero, nil
	}

	rate, err := c.GetRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	result := value.Mul(rate)
	if round {
		result = domain.Round2(result)
	}
	return result, nil
}

// ConvertString converts a textual amount; non-numeric input yields zero.
func (c *Converter) ConvertString(ctx context.Context, value string, from, to currency.Unit, round bool) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, nil
	}
	return c.Convert(ctx, d, from, to, round)
}

func (c *Converter) ConvertMoney(ctx context.Context, m domain.Money, to currency.Unit, round bool) (domain.Money, error) {
	amount, err := c.Convert(ctx, m.Amount, m.Currency, to, round)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.Money{Amount: amount, Currency: to}, nil
}
