// Package checkout drives the checkout flow of one session: the step machine,
// the persisted checkout state, totals aggregation and order placement.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/nikolayk812/cartprice/internal/cart"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/nikolayk812/cartprice/internal/shipping"
	"github.com/nikolayk812/cartprice/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

// Services are the external collaborators of the checkout.
type Services struct {
	Discounts port.DiscountService
	Taxes     port.TaxService
	Payments  port.PaymentMethods
	Orders    port.OrderService
	Customers port.CustomerService
}

type Config struct {
	CartName string
	Currency currency.Unit
	// CustomerID is empty for guests.
	CustomerID       string
	EmptyCartOnOrder bool
	RegisterGuests   bool
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session is request-scoped. State is loaded lazily and written back on
// every change.
type Session struct {
	id       string
	store    port.SessionStore
	cart     *cart.Store
	quoter   *shipping.Quoter
	svc      Services
	cfg      Config
	validate *validatorv10.Validate
	logger   *zap.Logger

	state  State
	loaded bool
	quotes *shipping.QuoteSet
}

func NewSession(id string, store port.SessionStore, carts *cart.Store, quoter *shipping.Quoter, svc Services, cfg Config, opts ...Option) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("sessionID is empty")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart store is nil")
	}
	if svc.Payments == nil || svc.Orders == nil {
		return nil, fmt.Errorf("payment and order services are required")
	}

	if cfg.CartName == "" {
		cfg.CartName = domain.DefaultCartName
	}
	if cfg.Currency == (currency.Unit{}) {
		if quoter != nil {
			cfg.Currency = quoter.Currency()
		} else {
			cfg.Currency = currency.USD
		}
	}

	s := &Session{
		id:       id,
		store:    store,
		cart:     carts,
		quoter:   quoter,
		svc:      svc,
		cfg:      cfg,
		validate: validation.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Session) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	var st State
	if _, err := s.store.Load(ctx, s.id, SessionKey, &st); err != nil {
		return fmt.Errorf("store.Load: %w", err)
	}

	s.state = st
	s.loaded = true
	return nil
}

func (s *Session) save(ctx context.Context) error {
	if err := s.store.Save(ctx, s.id, SessionKey, s.state); err != nil {
		return fmt.Errorf("store.Save: %w", err)
	}
	return nil
}

func (s *Session) update(ctx context.Context, fn func(st *State) error) error {
	if err := s.load(ctx); err != nil {
		return err
	}

	next := s.state
	if err := fn(&next); err != nil {
		return err
	}

	s.state = next
	return s.save(ctx)
}

// State returns a copy of the current checkout state.
func (s *Session) State(ctx context.Context) (State, error) {
	if err := s.load(ctx); err != nil {
		return State{}, err
	}
	return s.state, nil
}

// Reset clears the given fields, or the whole state when none are given.
func (s *Session) Reset(ctx context.Context, fields ...Field) error {
	s.quotes = nil
	return s.update(ctx, func(st *State) error {
		st.clear(fields...)
		return nil
	})
}

// Destroy removes the checkout state from the session.
func (s *Session) Destroy(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.id, SessionKey); err != nil {
		return fmt.Errorf("store.Delete: %w", err)
	}

	s.state = State{}
	s.loaded = true
	s.quotes = nil
	return nil
}

// Enter compares the stored cart fingerprint with the live cart. On mismatch
// the checkout restarts from the first step and restarted is true.
func (s *Session) Enter(ctx context.Context) (restarted bool, err error) {
	if err := s.load(ctx); err != nil {
		return false, err
	}

	fp, err := s.cart.Fingerprint(ctx, s.cfg.CartName)
	if err != nil {
		return false, err
	}

	switch s.state.CartID {
	case fp:
		return false, nil
	case "":
		s.state.CartID = fp
		if !s.state.Step.Valid() {
			s.state.Step = StepBillingInfo
		}
		return false, s.save(ctx)
	}

	s.logger.Info("cart changed during checkout, restarting",
		zap.String("session_id", s.id),
		zap.String("stored", s.state.CartID),
		zap.String("live", fp))

	s.quotes = nil
	s.state = State{Step: StepBillingInfo, CartID: fp}
	return true, s.save(ctx)
}

// guard fails with ErrStaleState after restarting a checkout whose cart
// changed.
func (s *Session) guard(ctx context.Context) error {
	restarted, err := s.Enter(ctx)
	if err != nil {
		return err
	}
	if restarted {
		return fmt.Errorf("%w: cart changed, checkout restarted", domain.ErrStaleState)
	}
	return nil
}

func (s *Session) SetBillingInfo(ctx context.Context, addr domain.Address) error {
	if err := validation.Check(s.validate, addr); err != nil {
		return err
	}
	return s.update(ctx, func(st *State) error {
		st.Billing = &addr
		return nil
	})
}

// SetShippingInfo stores the destination. A changed destination drops the
// selected quote.
func (s *Session) SetShippingInfo(ctx context.Context, addr domain.Address) error {
	if err := validation.Check(s.validate, addr); err != nil {
		return err
	}
	return s.update(ctx, func(st *State) error {
		if st.Shipping == nil || *st.Shipping != addr {
			st.ShippingQuote = nil
			s.quotes = nil
		}
		st.Shipping = &addr
		return nil
	})
}

func (s *Session) SetPaymentMethod(ctx context.Context, id string) error {
	pm, err := s.svc.Payments.GetPaymentMethod(ctx, id)
	if err != nil {
		return fmt.Errorf("payments.GetPaymentMethod: %w", err)
	}
	return s.update(ctx, func(st *State) error {
		st.PaymentMethodID = pm.ID
		return nil
	})
}

// SetCouponCode stores an upper-cased coupon. An empty code removes it.
func (s *Session) SetCouponCode(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code != "" && !validation.ValidCoupon(code) {
		return domain.ValidationError("coupon code %q is malformed", code)
	}
	return s.update(ctx, func(st *State) error {
		st.CouponCode = code
		return nil
	})
}

func (s *Session) SetNotes(ctx context.Context, notes string) error {
	return s.update(ctx, func(st *State) error {
		st.Notes = strings.TrimSpace(notes)
		return nil
	})
}

type guestPassword struct {
	Password string `validate:"min=8,max=72"`
}

// SetGuestPassword caches the password used to register a guest on order
// placement.
func (s *Session) SetGuestPassword(ctx context.Context, password string) error {
	if err := validation.Check(s.validate, guestPassword{Password: password}); err != nil {
		return err
	}
	return s.update(ctx, func(st *State) error {
		st.GuestPassword = password
		return nil
	})
}

func (s *Session) SetCustomField(ctx context.Context, name string, value any) error {
	if name == "" {
		return domain.ValidationError("custom field name is empty")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	return s.update(ctx, func(st *State) error {
		fields := make(map[string]json.RawMessage, len(st.CustomFields)+1)
		for k, v := range st.CustomFields {
			fields[k] = v
		}
		fields[name] = raw
		st.CustomFields = fields
		return nil
	})
}

// CustomField decodes a custom field into dst and reports whether it was set.
func (s *Session) CustomField(ctx context.Context, name string, dst any) (bool, error) {
	if err := s.load(ctx); err != nil {
		return false, err
	}

	raw, ok := s.state.CustomFields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return true, nil
}
