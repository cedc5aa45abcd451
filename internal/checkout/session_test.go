package checkout_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartprice/internal/cart"
	"github.com/nikolayk812/cartprice/internal/checkout"
	"github.com/nikolayk812/cartprice/internal/currency"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/memory"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/nikolayk812/cartprice/internal/pricing"
	"github.com/nikolayk812/cartprice/internal/shipping"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	xcurrency "golang.org/x/text/currency"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type flatTax struct {
	rate decimal.Decimal
}

func (f flatTax) ItemTax(_ context.Context, taxClass string, amount decimal.Decimal) (decimal.Decimal, error) {
	if taxClass == "exempt" {
		return decimal.Zero, nil
	}
	return amount.Mul(f.rate).Round(2), nil
}

func (f flatTax) Calculate(ctx context.Context, req port.TaxRequest) (port.TaxBreakdown, error) {
	out := port.TaxBreakdown{ByName: map[string]decimal.Decimal{}}
	for _, it := range req.Items {
		tax, _ := f.ItemTax(ctx, it.TaxClass, it.Amount)
		out.GoodsTax = out.GoodsTax.Add(tax)
	}
	out.ShippingTax = req.ShippingAmount.Mul(f.rate).Round(2)
	out.ByName["VAT"] = out.GoodsTax.Add(out.ShippingTax)
	return out, nil
}

type perUnitDiscount struct {
	amount       decimal.Decimal
	freeShipping bool
	requests     []port.DiscountRequest
}

func (d *perUnitDiscount) Evaluate(_ context.Context, req port.DiscountRequest) (port.DiscountResult, error) {
	d.requests = append(d.requests, req)

	res := port.DiscountResult{ItemDiscounts: map[string]decimal.Decimal{}, FreeShipping: d.freeShipping}
	if req.CouponCode == "" {
		return res, nil
	}
	for _, it := range req.Items {
		res.ItemDiscounts[it.Key] = d.amount
	}
	res.Rules = []domain.AppliedRule{{ID: "r1", Name: req.CouponCode}}
	return res, nil
}

type paymentMethods map[string]port.PaymentMethod

func (p paymentMethods) GetPaymentMethod(_ context.Context, id string) (port.PaymentMethod, error) {
	pm, ok := p[id]
	if !ok {
		return port.PaymentMethod{}, domain.NewNotFound("payment method", id)
	}
	return pm, nil
}

type orderRecorder struct {
	orders []port.OrderRequest
}

func (o *orderRecorder) CreateOrder(_ context.Context, req port.OrderRequest) (string, error) {
	o.orders = append(o.orders, req)
	return "order-1", nil
}

type customerRecorder struct {
	registered []string
}

func (c *customerRecorder) Register(_ context.Context, billing domain.Address, _ string) (string, error) {
	c.registered = append(c.registered, billing.Email)
	return "customer-42", nil
}

type ratesProvider struct {
	rates []port.RawRate
}

func (p *ratesProvider) Rates(context.Context, port.RateRequest) ([]port.RawRate, error) {
	return p.rates, nil
}

type fixedRate struct{}

func (fixedRate) FetchRate(context.Context, xcurrency.Unit, xcurrency.Unit) (decimal.Decimal, error) {
	return dec("1.10"), nil
}

var address = domain.Address{
	FirstName: "Ada", LastName: "Lovelace", Street: "12 St James's Square",
	City: "London", PostalCode: "SW1Y 4JH", Country: "GB", Email: "ada@example.com",
}

type env struct {
	lamp, ebook domain.Product
	carts       *cart.Store
	sessions    *memory.SessionStore
	discounts   *perUnitDiscount
	orders      *orderRecorder
	customers   *customerRecorder
	provider    *ratesProvider
	session     *checkout.Session
}

func newEnv(t *testing.T, cfg checkout.Config) *env {
	t.Helper()
	return newEnvWithTax(t, cfg, flatTax{rate: dec("0.2")})
}

// newEnvWithTax builds the env with tax used both per line and per order.
func newEnvWithTax(t *testing.T, cfg checkout.Config, tax port.TaxService) *env {
	t.Helper()

	e := &env{
		lamp: domain.Product{
			ID: uuid.New(), Name: "lamp", Enabled: true, TaxClass: "standard", RequiresShipping: true,
			PriceTiers: []domain.PriceTier{{MinQuantity: 1, Price: dec("40.00")}},
		},
		ebook: domain.Product{
			ID: uuid.New(), Name: "ebook", Enabled: true, TaxClass: "standard",
			PriceTiers: []domain.PriceTier{{MinQuantity: 1, Price: dec("15.00")}},
		},
		sessions:  memory.NewSessionStore(),
		discounts: &perUnitDiscount{amount: dec("5.00")},
		orders:    &orderRecorder{},
		customers: &customerRecorder{},
		provider: &ratesProvider{rates: []port.RawRate{
			{Service: "Ground", Price: dec("10.00"), Currency: "USD"},
		}},
	}

	catalog := memory.NewCatalog(e.lamp, e.ebook)

	var err error
	e.carts, err = cart.NewStore(memory.NewCartRepository(), "owner-1", catalog, pricing.NewPricer(tax, pricing.Policy{}))
	require.NoError(t, err)

	converter := currency.NewConverter(fixedRate{}, memory.NewRateRepository(), currency.Config{})
	quoter, err := shipping.NewQuoter([]shipping.Option{
		{ID: "ups", Name: "UPS", Enabled: true, Provider: e.provider},
	}, converter, xcurrency.USD, 0, nil)
	require.NoError(t, err)

	e.session, err = checkout.NewSession("sess-1", e.sessions, e.carts, quoter, checkout.Services{
		Discounts: e.discounts,
		Taxes:     tax,
		Payments:  paymentMethods{"card": {ID: "card", Name: "Card"}},
		Orders:    e.orders,
		Customers: e.customers,
	}, cfg)
	require.NoError(t, err)

	return e
}

func (e *env) add(t *testing.T, p domain.Product, qty int) domain.CartItem {
	t.Helper()
	item, err := e.carts.AddItem(t.Context(), cart.AddRequest{ProductID: p.ID, Quantity: qty})
	require.NoError(t, err)
	return item
}

func strPtr(s string) *string { return &s }

func TestAdvance_FullFlow(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.add(t, e.lamp, 2)

	restarted, err := e.session.Enter(ctx)
	require.NoError(t, err)
	assert.False(t, restarted)

	step, _, err := e.session.Advance(ctx, checkout.StepInput{Billing: &address})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepShippingInfo, step)

	step, _, err = e.session.Advance(ctx, checkout.StepInput{Shipping: &address})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepShippingMethod, step)

	// bare option id: ups produced a single quote
	step, totals, err := e.session.Advance(ctx, checkout.StepInput{ShippingQuoteID: "ups"})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPaymentMethod, step)
	require.NotNil(t, totals.ShippingQuote)
	assert.Equal(t, shipping.QuoteID("ups", "Ground"), totals.ShippingQuote.ID)

	step, _, err = e.session.Advance(ctx, checkout.StepInput{PaymentMethodID: "card", CouponCode: strPtr("spring-5")})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepReview, step)

	step, totals, err = e.session.Advance(ctx, checkout.StepInput{Notes: strPtr("  leave at the door ")})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPay, step)

	tests := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"subtotal excl", totals.Subtotal.Excl, "80"},
		{"subtotal incl", totals.Subtotal.Incl, "96"},
		{"discount excl", totals.Discount.Excl, "10"},
		{"discount incl", totals.Discount.Incl, "12"},
		{"shipping excl", totals.Shipping.Excl, "10"},
		{"shipping incl", totals.Shipping.Incl, "12"},
		{"goods tax", totals.GoodsTax, "14"},
		{"shipping tax", totals.ShippingTax, "2"},
		{"total excl", totals.Total.Excl, "80"},
		{"total incl", totals.Total.Incl, "96"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.String())
		})
	}
	assertTotalsReconcile(t, totals)

	st, err := e.session.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SPRING-5", st.CouponCode)
	assert.Equal(t, "leave at the door", st.Notes)

	last := e.discounts.requests[len(e.discounts.requests)-1]
	assert.Equal(t, "card", last.PaymentMethodID)
	assert.Equal(t, "ups", last.ShippingOptionID)
	assert.Equal(t, "80", last.Subtotal.String())

	back, err := e.session.GoBack(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepReview, back)
}

func TestAdvance_SkipsShippingMethodWithoutShippableItems(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.add(t, e.ebook, 1)

	_, _, err := e.session.Advance(ctx, checkout.StepInput{Billing: &address})
	require.NoError(t, err)

	step, totals, err := e.session.Advance(ctx, checkout.StepInput{Shipping: &address})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPaymentMethod, step)
	assert.False(t, totals.NeedsShipping)
	assert.True(t, totals.Shipping.Excl.IsZero())

	back, err := e.session.GoBack(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepShippingInfo, back)

	// posted data is ignored on re-entry without saving
	step, _, err = e.session.Advance(ctx, checkout.StepInput{NoSave: true, SkipTo: checkout.StepReview})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepReview, step)

	_, _, err = e.session.Advance(ctx, checkout.StepInput{NoSave: true, SkipTo: "nowhere"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCalculateTotals_ShippingDroppedWithEmptyCart(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	lamp := e.add(t, e.lamp, 1)

	require.NoError(t, e.session.SetShippingInfo(ctx, address))
	_, err := e.session.SelectShippingQuote(ctx, shipping.QuoteID("ups", "Ground"))
	require.NoError(t, err)

	totals, err := e.session.CalculateTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10", totals.Shipping.Excl.String())

	removed, err := e.carts.RemoveItem(ctx, "", lamp.Key)
	require.NoError(t, err)
	require.True(t, removed)

	totals, err = e.session.CalculateTotals(ctx)
	require.NoError(t, err)
	assert.Nil(t, totals.ShippingQuote)
	assert.True(t, totals.Shipping.Excl.IsZero())
	assert.True(t, totals.ShippingTax.IsZero())
	assert.True(t, totals.Total.Incl.IsZero())
}

func TestCalculateTotals_FreeShipping(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.discounts.freeShipping = true
	e.add(t, e.lamp, 1)

	require.NoError(t, e.session.SetShippingInfo(ctx, address))
	_, err := e.session.SelectShippingQuote(ctx, "ups")
	require.NoError(t, err)

	totals, err := e.session.CalculateTotals(ctx)
	require.NoError(t, err)
	assert.True(t, totals.FreeShipping)
	assert.True(t, totals.Shipping.Excl.IsZero())
	assert.True(t, totals.ShippingTax.IsZero())
	assert.Equal(t, "48", totals.Total.Incl.String())
}

func TestSelectShippingQuote_ConvertsCurrency(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.provider.rates = []port.RawRate{
		{Service: "Express", Price: dec("20.00"), Currency: "EUR"},
		{Service: "Economy", Price: dec("8.00"), Currency: "EUR"},
	}
	e.add(t, e.lamp, 1)

	require.NoError(t, e.session.SetShippingInfo(ctx, address))

	_, err := e.session.SelectShippingQuote(ctx, "ups")
	require.ErrorIs(t, err, domain.ErrNotFound, "two quotes, bare option id is ambiguous")

	quote, err := e.session.SelectShippingQuote(ctx, shipping.QuoteID("ups", "Express"))
	require.NoError(t, err)
	assert.Equal(t, xcurrency.USD, quote.Currency)
	assert.Equal(t, "22", quote.Price.String())

	// Express disappears from the next rate set
	e.provider.rates = e.provider.rates[1:]
	_, err = e.session.RefreshShippingQuote(ctx)
	var gone *domain.QuoteNoLongerApplicableError
	require.ErrorAs(t, err, &gone)

	st, err := e.session.State(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.ShippingQuote)
}

func TestEnter_RestartsWhenCartChanges(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.add(t, e.ebook, 1)

	restarted, err := e.session.Enter(ctx)
	require.NoError(t, err)
	assert.False(t, restarted)

	require.NoError(t, e.session.SetBillingInfo(ctx, address))
	require.NoError(t, e.session.SetCouponCode(ctx, "welcome"))

	restarted, err = e.session.Enter(ctx)
	require.NoError(t, err)
	assert.False(t, restarted, "unchanged cart")

	e.add(t, e.ebook, 1)

	restarted, err = e.session.Enter(ctx)
	require.NoError(t, err)
	assert.True(t, restarted)

	st, err := e.session.State(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.Billing)
	assert.Empty(t, st.CouponCode)
	assert.Equal(t, checkout.StepBillingInfo, st.Step)
}

func TestPlaceOrder_MissingPaymentMethod(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.add(t, e.ebook, 1)

	require.NoError(t, e.session.SetBillingInfo(ctx, address))

	_, err := e.session.PlaceOrder(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, e.orders.orders)

	err = e.session.SetPaymentMethod(ctx, "bitcoin")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceOrder_MissingShippingQuote(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.add(t, e.lamp, 1)

	require.NoError(t, e.session.SetBillingInfo(ctx, address))
	require.NoError(t, e.session.SetShippingInfo(ctx, address))
	require.NoError(t, e.session.SetPaymentMethod(ctx, "card"))

	_, err := e.session.PlaceOrder(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, e.orders.orders)
}

func TestPlaceOrder_StaleCart(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.add(t, e.ebook, 1)

	_, err := e.session.Enter(ctx)
	require.NoError(t, err)
	require.NoError(t, e.session.SetBillingInfo(ctx, address))
	require.NoError(t, e.session.SetPaymentMethod(ctx, "card"))

	e.add(t, e.ebook, 2)

	_, err = e.session.PlaceOrder(ctx)
	require.ErrorIs(t, err, domain.ErrStaleState)
	assert.Empty(t, e.orders.orders)
}

func TestPlaceOrder(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{EmptyCartOnOrder: true, RegisterGuests: true})
	e.add(t, e.lamp, 1)
	e.add(t, e.ebook, 2)

	require.NoError(t, e.session.SetBillingInfo(ctx, address))
	require.NoError(t, e.session.SetShippingInfo(ctx, address))
	_, err := e.session.SelectShippingQuote(ctx, "ups")
	require.NoError(t, err)
	require.NoError(t, e.session.SetPaymentMethod(ctx, "card"))
	require.NoError(t, e.session.SetCouponCode(ctx, "SPRING-5"))
	require.NoError(t, e.session.SetNotes(ctx, "ring twice"))
	require.NoError(t, e.session.SetGuestPassword(ctx, "correct-horse"))
	require.NoError(t, e.session.SetCustomField(ctx, "gift_message", "happy birthday"))

	orderID, err := e.session.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-1", orderID)

	require.Len(t, e.orders.orders, 1)
	order := e.orders.orders[0]
	assert.Equal(t, "customer-42", order.CustomerID)
	assert.Equal(t, []string{"ada@example.com"}, e.customers.registered)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "SPRING-5", order.CouponCode)
	assert.Equal(t, "ring twice", order.Notes)
	assert.Equal(t, "card", order.PaymentMethod.ID)
	require.NotNil(t, order.ShippingQuote)
	assert.Contains(t, order.CustomFields, "gift_message")
	// (40 - 5) + 2 * (15 - 5) = 55 goods, 10 shipping, 20% tax on both
	assert.Equal(t, "78", order.Totals.Total.Incl.String())

	lines, err := e.carts.List(ctx, "", false)
	require.NoError(t, err)
	assert.Empty(t, lines)

	st, err := e.session.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Notes)
	assert.Empty(t, st.CouponCode)
	assert.Empty(t, st.GuestPassword)
	assert.NotNil(t, st.Billing, "addresses are kept")
}

func TestSessionState(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})

	err := e.session.SetCouponCode(ctx, "no spaces allowed")
	require.ErrorIs(t, err, domain.ErrValidation)

	err = e.session.SetBillingInfo(ctx, domain.Address{FirstName: "Ada"})
	require.ErrorIs(t, err, domain.ErrValidation)

	err = e.session.SetGuestPassword(ctx, "short")
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, e.session.SetBillingInfo(ctx, address))
	require.NoError(t, e.session.SetNotes(ctx, "hello"))
	require.NoError(t, e.session.SetCustomField(ctx, "po_number", 1234))

	var po int
	ok, err := e.session.CustomField(ctx, "po_number", &po)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1234, po)

	require.NoError(t, e.session.Reset(ctx, checkout.FieldNotes))
	st, err := e.session.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Notes)
	assert.NotNil(t, st.Billing)

	// a fresh session reads what was saved
	again, err := checkout.NewSession("sess-1", e.sessions, e.carts, nil, checkout.Services{
		Payments: paymentMethods{}, Orders: e.orders,
	}, checkout.Config{})
	require.NoError(t, err)
	st, err = again.State(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Billing)
	assert.Equal(t, address, *st.Billing)

	require.NoError(t, e.session.Reset(ctx))
	st, err = e.session.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.State{}, st)

	require.NoError(t, e.session.Destroy(ctx))
	ok, err = e.sessions.Load(ctx, "sess-1", checkout.SessionKey, &st)
	require.NoError(t, err)
	assert.False(t, ok)
}

func assertTotalsReconcile(t *testing.T, totals domain.Totals) {
	t.Helper()

	incl := totals.Subtotal.Incl.Sub(totals.Discount.Incl).Add(totals.Shipping.Incl)
	assert.True(t, incl.Equal(totals.Total.Incl), "subtotal - discount + shipping = %s, total = %s", incl, totals.Total.Incl)

	excl := totals.Subtotal.Excl.Sub(totals.Discount.Excl).Add(totals.Shipping.Excl)
	assert.True(t, excl.Equal(totals.Total.Excl), "subtotal - discount + shipping = %s, total = %s", excl, totals.Total.Excl)
}

// orderRateTax taxes orders at a lower rate than single lines, like a regime
// where the tax engine applies order-level exemptions.
type orderRateTax struct {
	line, order decimal.Decimal
}

func (o orderRateTax) ItemTax(_ context.Context, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	return amount.Mul(o.line).Round(2), nil
}

func (o orderRateTax) Calculate(_ context.Context, req port.TaxRequest) (port.TaxBreakdown, error) {
	out := port.TaxBreakdown{}
	for _, it := range req.Items {
		out.GoodsTax = out.GoodsTax.Add(it.Amount.Mul(o.order).Round(2))
	}
	out.ShippingTax = req.ShippingAmount.Mul(o.order).Round(2)
	return out, nil
}

func TestCalculateTotals_InclusiveFiguresFollowTaxService(t *testing.T) {
	ctx := t.Context()
	e := newEnvWithTax(t, checkout.Config{}, orderRateTax{line: dec("0.2"), order: dec("0.1")})
	e.add(t, e.lamp, 2)

	require.NoError(t, e.session.SetBillingInfo(ctx, address))
	require.NoError(t, e.session.SetShippingInfo(ctx, address))
	_, err := e.session.SelectShippingQuote(ctx, "ups")
	require.NoError(t, err)
	require.NoError(t, e.session.SetCouponCode(ctx, "spring-5"))

	totals, err := e.session.CalculateTotals(ctx)
	require.NoError(t, err)

	assert.Equal(t, "88", totals.Subtotal.Incl.String())
	assert.Equal(t, "11", totals.Discount.Incl.String())
	assert.Equal(t, "7", totals.GoodsTax.String())
	assert.Equal(t, "11", totals.Shipping.Incl.String())
	assert.Equal(t, "88", totals.Total.Incl.String())
	assertTotalsReconcile(t, totals)
}

func TestAdvance_RestartsWhenCartChangesBetweenSteps(t *testing.T) {
	ctx := t.Context()
	e := newEnv(t, checkout.Config{})
	e.add(t, e.lamp, 1)

	_, err := e.session.Enter(ctx)
	require.NoError(t, err)

	_, _, err = e.session.Advance(ctx, checkout.StepInput{Billing: &address})
	require.NoError(t, err)
	_, _, err = e.session.Advance(ctx, checkout.StepInput{Shipping: &address})
	require.NoError(t, err)
	step, _, err := e.session.Advance(ctx, checkout.StepInput{ShippingQuoteID: "ups"})
	require.NoError(t, err)
	require.Equal(t, checkout.StepPaymentMethod, step)

	e.add(t, e.lamp, 4)

	step, _, err = e.session.Advance(ctx, checkout.StepInput{PaymentMethodID: "card"})
	require.ErrorIs(t, err, domain.ErrStaleState)
	assert.Equal(t, checkout.StepBillingInfo, step)

	st, err := e.session.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepBillingInfo, st.Step)
	assert.Nil(t, st.ShippingQuote)
	assert.Nil(t, st.Billing)
	assert.Empty(t, st.PaymentMethodID, "posted data is not stored")

	// the restarted flow runs against the new cart
	step, totals, err := e.session.Advance(ctx, checkout.StepInput{Billing: &address})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepShippingInfo, step)
	assert.Equal(t, "200", totals.Subtotal.Excl.String())
}
