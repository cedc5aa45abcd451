package repository

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/cartprice/internal/db"
	"github.com/nikolayk812/cartprice/internal/domain"
	"golang.org/x/text/currency"
	"time"
)

type RateRepository struct {
	q *db.Queries
}

func NewRate(pool *pgxpool.Pool) (*RateRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &RateRepository{q: db.New(pool)}, nil
}

func (r *RateRepository) LatestRate(ctx context.Context, from, to currency.Unit) (domain.CurrencyRate, bool, error) {
	row, err := r.q.LatestRate(ctx, db.LatestRateParams{
		FromCurrency: from.String(),
		ToCurrency:   to.String(),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CurrencyRate{}, false, nil
	}
	if err != nil {
		return domain.CurrencyRate{}, false, fmt.Errorf("q.LatestRate: %w", err)
	}

	rate, err := mapCurrencyRateToDomain(row)
	if err != nil {
		return domain.CurrencyRate{}, false, fmt.Errorf("mapCurrencyRateToDomain: %w", err)
	}

	return rate, true, nil
}

func (r *RateRepository) SaveRate(ctx context.Context, rate domain.CurrencyRate) error {
	if !rate.Rate.IsPositive() {
		return fmt.Errorf("rate[%s] is not positive", rate.Rate)
	}

	err := r.q.InsertRate(ctx, db.InsertRateParams{
		FromCurrency: rate.From.String(),
		ToCurrency:   rate.To.String(),
		Rate:         rate.Rate,
		FetchedAt:    rate.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("q.InsertRate: %w", err)
	}

	return nil
}

// Prune deletes rates fetched before cutoff and returns how many were removed.
func (r *RateRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.q.PruneRates(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("q.PruneRates: %w", err)
	}
	return n, nil
}

func mapCurrencyRateToDomain(row db.CurrencyRate) (domain.CurrencyRate, error) {
	from, err := currency.ParseISO(row.FromCurrency)
	if err != nil {
		return domain.CurrencyRate{}, fmt.Errorf("currency[%s] is not valid: %w", row.FromCurrency, err)
	}
	to, err := currency.ParseISO(row.ToCurrency)
	if err != nil {
		return domain.CurrencyRate{}, fmt.Errorf("currency[%s] is not valid: %w", row.ToCurrency, err)
	}

	return domain.CurrencyRate{
		From:      from,
		To:        to,
		Rate:      row.Rate,
		FetchedAt: row.FetchedAt,
	}, nil
}
