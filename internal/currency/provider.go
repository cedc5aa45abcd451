package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
)

// HTTPProvider queries a JSON rate endpoint:
//
//	GET {baseURL}?from=USD&to=CAD  ->  {"rate": "1.3521"}
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: DefaultProviderTimeout}
	}
	return &HTTPProvider{baseURL: baseURL, client: client}
}

type rateResponse struct {
	Rate decimal.Decimal `json:"rate"`
}

func (p *HTTPProvider) FetchRate(ctx context.Context, from, to currency.Unit) (decimal.Decimal, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("url.Parse: %w", err)
	}
	q := u.Query()
	q.Set("from", from.String())
	q.Set("to", to.String())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate endpoint returned %s", resp.Status)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate response: %w", err)
	}

	return body.Rate, nil
}

// GuardedProvider shares one circuit breaker across requests and collapses
// concurrent fetches of the same pair.
type GuardedProvider struct {
	next    port.RateProvider
	breaker *gobreaker.CircuitBreaker[decimal.Decimal]
	sfg     singleflight.Group
}

func NewGuardedProvider(name string, next port.RateProvider, logger *zap.Logger) *GuardedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("rate provider breaker state changed",
				zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	}

	return &GuardedProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[decimal.Decimal](settings),
	}
}

func (g *GuardedProvider) FetchRate(ctx context.Context, from, to currency.Unit) (decimal.Decimal, error) {
	v, err, _ := g.sfg.Do(from.String()+":"+to.String(), func() (any, error) {
		return g.breaker.Execute(func() (decimal.Decimal, error) {
			return g.next.FetchRate(ctx, from, to)
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}
