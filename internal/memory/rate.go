package memory

import (
	"context"
	"sync"

	"github.com/nikolayk812/cartprice/internal/domain"
	"golang.org/x/text/currency"
)

type RateRepository struct {
	mu    sync.RWMutex
	rates map[string]domain.CurrencyRate
}

func NewRateRepository() *RateRepository {
	return &RateRepository{rates: map[string]domain.CurrencyRate{}}
}

func (r *RateRepository) LatestRate(_ context.Context, from, to currency.Unit) (domain.CurrencyRate, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rate, ok := r.rates[from.String()+to.String()]
	return rate, ok, nil
}

func (r *RateRepository) SaveRate(_ context.Context, rate domain.CurrencyRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rate.From.String() + rate.To.String()
	if prev, ok := r.rates[key]; ok && prev.FetchedAt.After(rate.FetchedAt) {
		return nil
	}
	r.rates[key] = rate
	return nil
}
