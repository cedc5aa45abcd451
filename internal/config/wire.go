package config

import (
	"context"
	"fmt"

	"github.com/nikolayk812/cartprice/internal/cart"
	"github.com/nikolayk812/cartprice/internal/currency"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/pricing"
	"github.com/nikolayk812/cartprice/internal/session"
	"github.com/nikolayk812/cartprice/internal/shipping"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	xcurrency "golang.org/x/text/currency"
)

func (c Config) CurrencyConfig() currency.Config {
	return currency.Config{
		RefreshInterval: c.RateRefreshInterval,
		CronMode:        c.RateCronMode,
		ProviderTimeout: c.RateProviderTimeout,
	}
}

// PricingPolicy returns the pricing policy for one customer. An empty
// customerID disables tier pricing.
func (c Config) PricingPolicy(customerID string) pricing.Policy {
	return pricing.Policy{
		PricesIncludeTax: c.PricesIncludeTax,
		CustomerID:       customerID,
	}
}

func (c Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// SessionBackends builds the checkout state store and the anonymous cart
// repository, both expiring after SessionTTL.
func (c Config) SessionBackends(client *redis.Client) (*session.Store, *session.CartRepository, error) {
	store, err := session.NewStore(client, c.SessionTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("session.NewStore: %w", err)
	}

	carts, err := session.NewCartRepository(client, c.SessionTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("session.NewCartRepository: %w", err)
	}

	return store, carts, nil
}

func (c Config) NewQuoter(options []shipping.Option, converter shipping.RateConverter, target xcurrency.Unit, logger *zap.Logger) (*shipping.Quoter, error) {
	q, err := shipping.NewQuoter(options, converter, target, c.ShippingProviderTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("shipping.NewQuoter: %w", err)
	}
	return q, nil
}

// MergeCart folds an anonymous cart into the customer's cart using the
// configured merge behavior.
func (c Config) MergeCart(ctx context.Context, customer *cart.Store, anon domain.Cart) error {
	if customer == nil {
		return fmt.Errorf("customer is nil")
	}

	if err := customer.Merge(ctx, anon, c.CartMergeBehavior); err != nil {
		return fmt.Errorf("customer.Merge: %w", err)
	}
	return nil
}
