// Command ratesync refreshes the persisted currency rates for the configured
// pairs. It is meant to run from cron when RATE_CRON_MODE is enabled for the
// checkout services.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/cartprice/internal/config"
	"github.com/nikolayk812/cartprice/internal/currency"
	"github.com/nikolayk812/cartprice/internal/repository"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config.Load: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "newLogger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rate sync failed", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("zap.ParseAtomicLevel: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl

	return zcfg.Build()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.RateProviderURL == "" {
		return fmt.Errorf("RATE_PROVIDER_URL is empty")
	}
	if len(cfg.RateSyncPairs) == 0 {
		logger.Info("no currency pairs configured")
		return nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	if err := repository.Migrate(pool); err != nil {
		return fmt.Errorf("repository.Migrate: %w", err)
	}

	rates, err := repository.NewRate(pool)
	if err != nil {
		return fmt.Errorf("repository.NewRate: %w", err)
	}

	provider := currency.NewGuardedProvider("rates",
		currency.NewHTTPProvider(cfg.RateProviderURL, &http.Client{Timeout: cfg.RateProviderTimeout}),
		logger)

	converterCfg := cfg.CurrencyConfig()
	converterCfg.CronMode = true

	converter := currency.NewConverter(provider, rates, converterCfg, currency.WithLogger(logger))

	var errs []error
	for _, p := range cfg.RateSyncPairs {
		rate, err := converter.Refresh(ctx, p.From, p.To)
		if err != nil {
			logger.Warn("rate refresh failed", zap.Stringer("pair", p), zap.Error(err))
			errs = append(errs, fmt.Errorf("pair[%s]: %w", p, err))
			continue
		}
		logger.Info("rate refreshed", zap.Stringer("pair", p), zap.Stringer("rate", rate.Rate))
	}

	if cfg.RateRetention > 0 {
		pruned, err := rates.Prune(ctx, time.Now().Add(-cfg.RateRetention))
		if err != nil {
			errs = append(errs, fmt.Errorf("rates.Prune: %w", err))
		} else {
			logger.Info("old rates pruned", zap.Int64("count", pruned))
		}
	}

	return errors.Join(errs...)
}
