package shipping_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/nikolayk812/cartprice/internal/shipping"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticProvider struct {
	rates []port.RawRate
	err   error
	req   port.RateRequest
}

func (p *staticProvider) Rates(_ context.Context, req port.RateRequest) ([]port.RawRate, error) {
	p.req = req
	return p.rates, p.err
}

type blockingProvider struct{}

func (blockingProvider) Rates(ctx context.Context, _ port.RateRequest) ([]port.RawRate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type labelProvider struct {
	staticProvider
}

func (labelProvider) Labels(_ context.Context, orderID string) ([]port.Label, error) {
	return []port.Label{{TrackingNumber: "TRK-" + orderID, Format: "pdf"}}, nil
}

var summary = domain.CartSummary{
	Value:     decimal.NewFromInt(40),
	Currency:  currency.USD,
	Weight:    decimal.NewFromInt(2),
	ItemCount: 2,
}

func TestQuoter_Quote(t *testing.T) {
	ups := &staticProvider{rates: []port.RawRate{
		{Service: "Ground", Price: decimal.NewFromInt(5), Currency: "USD"},
		{Service: "Air", Price: decimal.NewFromInt(15), Currency: "USD", Metadata: map[string]string{"eta": "1d"}},
	}}
	dhl := &staticProvider{rates: []port.RawRate{
		{Service: "Express", Price: decimal.NewFromInt(10), Currency: "EUR"},
	}}
	broken := &staticProvider{err: errors.New("carrier api 503")}

	options := []shipping.Option{
		{ID: "ups", Name: "UPS", Enabled: true, Provider: ups},
		{ID: "dhl", Name: "DHL", Enabled: true, Provider: dhl},
		{ID: "broken", Name: "Broken", Enabled: true, Provider: broken},
		{ID: "off", Name: "Disabled", Enabled: false, Provider: &staticProvider{}},
	}

	q := newQuoter(t, options, &fixedRateConverter{rate: decimal.RequireFromString("1.1")}, time.Second)
	dest := domain.Address{Country: "US", City: "Austin"}

	set := q.Quote(t.Context(), dest, summary)

	require.Len(t, set.Quotes, 3)
	assert.Equal(t, "Ground", set.Quotes[0].ServiceName)
	assert.Equal(t, "1d", set.Quotes[1].Metadata["eta"])
	assert.Equal(t, currency.USD, set.Quotes[2].Currency)
	assert.Equal(t, "11", set.Quotes[2].Price.String())

	assert.Equal(t, "provider unavailable", set.Diagnostics["broken"])
	assert.NotContains(t, set.Diagnostics, "off")
	assert.Equal(t, dest, ups.req.Destination)
	assert.Equal(t, 2, ups.req.Cart.ItemCount)

	again := q.Quote(t.Context(), dest, summary)
	assert.Equal(t, set.Quotes[0].ID, again.Quotes[0].ID)
}

func TestQuoter_Timeout(t *testing.T) {
	fast := &staticProvider{rates: []port.RawRate{{Service: "Ground", Price: decimal.NewFromInt(5), Currency: "USD"}}}
	options := []shipping.Option{
		{ID: "slow", Enabled: true, Provider: blockingProvider{}},
		{ID: "fast", Enabled: true, Provider: fast},
	}

	q := newQuoter(t, options, &fixedRateConverter{rate: decimal.NewFromInt(1)}, 20*time.Millisecond)

	set := q.Quote(t.Context(), domain.Address{}, summary)

	require.Len(t, set.Quotes, 1)
	assert.Equal(t, "fast", set.Quotes[0].OptionID)
	assert.Equal(t, "provider timed out", set.Diagnostics["slow"])
}

func TestQuoter_ConversionFailureDropsRate(t *testing.T) {
	options := []shipping.Option{{ID: "dhl", Enabled: true, Provider: &staticProvider{rates: []port.RawRate{
		{Service: "Express", Price: decimal.NewFromInt(10), Currency: "EUR"},
	}}}}

	q := newQuoter(t, options, failingConverter{}, time.Second)

	set := q.Quote(t.Context(), domain.Address{}, summary)

	assert.Empty(t, set.Quotes)
	assert.Contains(t, set.Diagnostics["dhl"], "USD")
}

func TestQuoter_EmptyCart(t *testing.T) {
	provider := &staticProvider{rates: []port.RawRate{{Service: "Ground", Price: decimal.NewFromInt(5), Currency: "USD"}}}
	q := newQuoter(t, []shipping.Option{{ID: "ups", Enabled: true, Provider: provider}}, &fixedRateConverter{rate: decimal.NewFromInt(1)}, time.Second)

	set := q.Quote(t.Context(), domain.Address{}, domain.CartSummary{})

	assert.Empty(t, set.Quotes)
	assert.Empty(t, set.Diagnostics)
}

func TestQuoter_Labels(t *testing.T) {
	options := []shipping.Option{
		{ID: "ups", Enabled: true, Provider: &labelProvider{}},
		{ID: "flat", Enabled: true, Provider: &staticProvider{}},
	}
	q := newQuoter(t, options, &fixedRateConverter{rate: decimal.NewFromInt(1)}, time.Second)

	labels, err := q.Labels(t.Context(), "ups", "order-1")
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "TRK-order-1", labels[0].TrackingNumber)

	_, err = q.Labels(t.Context(), "flat", "order-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = q.Labels(t.Context(), "nope", "order-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func newQuoter(t *testing.T, options []shipping.Option, converter shipping.RateConverter, timeout time.Duration) *shipping.Quoter {
	t.Helper()

	q, err := shipping.NewQuoter(options, converter, currency.USD, timeout, nil)
	require.NoError(t, err)
	return q
}

func TestNewQuoter_NilConverter(t *testing.T) {
	_, err := shipping.NewQuoter([]shipping.Option{{ID: "dhl", Enabled: true, Provider: &staticProvider{}}}, nil, currency.USD, time.Second, nil)
	require.EqualError(t, err, "converter is nil")
}
