// Package cart manages the named carts of one owner: adding, removing and
// re-quantifying items, hydrating them against the catalog, and aggregating
// their prices.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/port"
	"github.com/nikolayk812/cartprice/internal/pricing"
	"github.com/nikolayk812/cartprice/internal/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Option func(*Store)

func WithObservers(observers ...port.CartMutationObserver) Option {
	return func(s *Store) { s.observers = append(s.observers, observers...) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.nowFunc = now }
}

func WithKeyFunc(newKey func() string) Option {
	return func(s *Store) { s.newKey = newKey }
}

// Store is request-scoped: loaded carts, hydrated views and catalog lookups
// are cached for its lifetime and dropped on every mutation of the cart.
type Store struct {
	repo      port.CartRepository
	ownerID   string
	catalog   port.ProductCatalog
	pricer    *pricing.Pricer
	observers []port.CartMutationObserver
	validate  *validatorv10.Validate
	logger    *zap.Logger
	nowFunc   func() time.Time
	newKey    func() string

	carts     map[string][]*domain.CartItem
	views     map[string]*view
	products  map[uuid.UUID]productEntry
	discounts map[string]map[string]decimal.Decimal
}

type view struct {
	lines   []*pricing.Line
	invalid []string
}

type productEntry struct {
	product domain.Product
	found   bool
}

func NewStore(repo port.CartRepository, ownerID string, catalog port.ProductCatalog, pricer *pricing.Pricer, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("repo is nil")
	}
	if ownerID == "" {
		return nil, fmt.Errorf("ownerID is empty")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricer is nil")
	}

	s := &Store{
		repo:      repo,
		ownerID:   ownerID,
		catalog:   catalog,
		pricer:    pricer,
		validate:  validation.New(),
		logger:    zap.NewNop(),
		nowFunc:   time.Now,
		newKey:    uuid.NewString,
		carts:     map[string][]*domain.CartItem{},
		views:     map[string]*view{},
		products:  map[uuid.UUID]productEntry{},
		discounts: map[string]map[string]decimal.Decimal{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Store) OwnerID() string {
	return s.ownerID
}

func (s *Store) Pricer() *pricing.Pricer {
	return s.pricer
}

func cartNameOrDefault(name string) string {
	if name == "" {
		return domain.DefaultCartName
	}
	return name
}

func (s *Store) load(ctx context.Context, cartName string) ([]*domain.CartItem, error) {
	if items, ok := s.carts[cartName]; ok {
		return items, nil
	}

	cart, err := s.repo.GetCart(ctx, s.ownerID, cartName)
	if err != nil {
		return nil, fmt.Errorf("repo.GetCart: %w", err)
	}

	items := make([]*domain.CartItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		it := it
		if it.CartName == "" {
			it.CartName = cartName
		}
		items = append(items, &it)
	}
	s.carts[cartName] = items

	return items, nil
}

func (s *Store) invalidate(cartName string) {
	delete(s.views, cartName)
}

// product returns found=false when the catalog no longer knows the product.
func (s *Store) product(ctx context.Context, id uuid.UUID) (domain.Product, bool, error) {
	if e, ok := s.products[id]; ok {
		return e.product, e.found, nil
	}

	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.products[id] = productEntry{}
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, fmt.Errorf("catalog.GetProduct: %w", err)
	}

	s.products[id] = productEntry{product: p, found: true}
	return p, true, nil
}

func find(items []*domain.CartItem, key string) *domain.CartItem {
	for _, it := range items {
		if it.Key == key {
			return it
		}
	}
	return nil
}

func components(items []*domain.CartItem, masterKey string) []*domain.CartItem {
	var out []*domain.CartItem
	for _, it := range items {
		if it.BundleMasterKey == masterKey {
			out = append(out, it)
		}
	}
	return out
}

// List returns the hydrated lines of a cart in insertion order. Items whose
// product, variant, options or extras are no longer valid are left out, and
// deleted from storage when autoRemove is set.
func (s *Store) List(ctx context.Context, cartName string, autoRemove bool) ([]*pricing.Line, error) {
	cartName = cartNameOrDefault(cartName)

	v, ok := s.views[cartName]
	if !ok {
		var err error
		v, err = s.hydrate(ctx, cartName)
		if err != nil {
			return nil, err
		}
		s.views[cartName] = v
	}

	if autoRemove && len(v.invalid) > 0 {
		if err := s.deleteKeys(ctx, cartName, v.invalid); err != nil {
			return nil, err
		}
		s.logger.Info("removed invalid cart items",
			zap.String("owner_id", s.ownerID),
			zap.String("cart", cartName),
			zap.Strings("keys", v.invalid))
		v.invalid = nil
	}

	return v.lines, nil
}

func (s *Store) hydrate(ctx context.Context, cartName string) (*view, error) {
	items, err := s.load(ctx, cartName)
	if err != nil {
		return nil, err
	}

	discounts := s.discounts[cartName]
	byKey := make(map[string]*pricing.Line, len(items))
	v := &view{}

	// masters first so components can link to them
	for _, pass := range []bool{false, true} {
		for _, it := range items {
			if it.IsBundleComponent() != pass {
				continue
			}

			var master *pricing.Line
			if pass {
				master = byKey[it.BundleMasterKey]
				if master == nil {
					v.invalid = append(v.invalid, it.Key)
					continue
				}
			}

			l, ok, err := s.hydrateItem(ctx, *it, master)
			if err != nil {
				return nil, err
			}
			if !ok {
				v.invalid = append(v.invalid, it.Key)
				continue
			}

			l.Item.CartDiscount = discounts[it.Key]
			byKey[it.Key] = l
			if master != nil {
				master.Components = append(master.Components, l)
			}
		}
	}

	// masters whose required components were dropped are invalid as well
	for _, it := range items {
		l := byKey[it.Key]
		if l == nil || it.IsBundleComponent() || len(l.Product.BundleComponents) == 0 {
			continue
		}
		for _, c := range l.Product.BundleComponents {
			if c.Required && !hasComponent(l, c.ProductID) {
				delete(byKey, it.Key)
				v.invalid = append(v.invalid, it.Key)
				for _, cl := range l.Components {
					delete(byKey, cl.Key())
					v.invalid = append(v.invalid, cl.Key())
				}
				break
			}
		}
	}

	for _, it := range items {
		if l, ok := byKey[it.Key]; ok {
			v.lines = append(v.lines, l)
		}
	}

	return v, nil
}

func hasComponent(master *pricing.Line, productID uuid.UUID) bool {
	for _, c := range master.Components {
		if c.Product.ID == productID {
			return true
		}
	}
	return false
}

func (s *Store) hydrateItem(ctx context.Context, it domain.CartItem, master *pricing.Line) (*pricing.Line, bool, error) {
	p, found, err := s.product(ctx, it.ProductID)
	if err != nil {
		return nil, false, err
	}
	if !found || !p.Enabled || !p.OptionsValid(it.Options) {
		return nil, false, nil
	}

	l := &pricing.Line{Item: it, Product: p, Master: master}

	if it.VariantID != nil {
		variant, ok := p.Variant(*it.VariantID)
		if !ok || !variant.Enabled {
			return nil, false, nil
		}
		l.Variant = &variant
	}

	for _, id := range it.Extras {
		extra, ok := p.ExtraOption(id)
		if !ok {
			return nil, false, nil
		}
		l.Extras = append(l.Extras, extra)
	}

	if master != nil {
		c, ok := master.Product.BundleComponent(it.ProductID)
		if !ok {
			return nil, false, nil
		}
		l.Component = &c
	}

	return l, true, nil
}

func (s *Store) deleteKeys(ctx context.Context, cartName string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	if _, err := s.repo.DeleteItems(ctx, s.ownerID, cartName, keys...); err != nil {
		return fmt.Errorf("repo.DeleteItems: %w", err)
	}

	items := s.carts[cartName]
	kept := items[:0]
	for _, it := range items {
		drop := false
		for _, k := range keys {
			if it.Key == k {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, it)
		}
	}
	s.carts[cartName] = kept
	s.invalidate(cartName)

	return nil
}

func (s *Store) save(ctx context.Context, items ...*domain.CartItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		batch = append(batch, it.Clone())
	}

	if err := s.repo.SaveItems(ctx, s.ownerID, batch...); err != nil {
		return fmt.Errorf("repo.SaveItems: %w", err)
	}
	return nil
}

// update applies mutate to cached items and saves them. The items are
// restored when the save fails, so the cache never holds unsaved changes.
func (s *Store) update(ctx context.Context, items []*domain.CartItem, mutate func()) error {
	before := make([]domain.CartItem, len(items))
	for i, it := range items {
		before[i] = it.Clone()
	}

	mutate()

	if err := s.save(ctx, items...); err != nil {
		for i, it := range items {
			*it = before[i]
		}
		return err
	}
	return nil
}
