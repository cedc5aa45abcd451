package cart

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/pricing"
	"github.com/nikolayk812/cartprice/internal/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BundleSelection picks one component of a bundle. Quantity is per bundle;
// zero means the component's default quantity.
type BundleSelection struct {
	ProductID uuid.UUID         `validate:"required"`
	Quantity  int               `validate:"min=0"`
	Options   map[string]string
}

type AddRequest struct {
	ProductID     uuid.UUID `validate:"required"`
	CartName      string    `validate:"omitempty,cartname"`
	Quantity      int       `validate:"min=1,max=1000000"`
	Options       map[string]string
	Extras        []string
	CustomData    map[string]string
	Files         []string
	PriceOverride *decimal.Decimal
	Bundle        []BundleSelection `validate:"dive"`
}

// resolved is a validated add request, ready to be applied.
type resolved struct {
	product    domain.Product
	variant    *domain.Variant
	components []resolvedComponent
}

type resolvedComponent struct {
	product   domain.Product
	variant   *domain.Variant
	options   map[string]string
	perBundle int
}

// AddItem adds a product to a cart, or raises the quantity of an identical
// line already there. Bundles are validated completely before anything is
// written.
func (s *Store) AddItem(ctx context.Context, req AddRequest) (domain.CartItem, error) {
	if err := validation.Check(s.validate, req); err != nil {
		return domain.CartItem{}, err
	}
	cartName := cartNameOrDefault(req.CartName)

	items, err := s.load(ctx, cartName)
	if err != nil {
		return domain.CartItem{}, err
	}

	r, err := s.resolve(ctx, req)
	if err != nil {
		return domain.CartItem{}, err
	}

	candidate := domain.CartItem{
		CartName:      cartName,
		ProductID:     req.ProductID,
		Options:       maps.Clone(req.Options),
		Extras:        slices.Clone(req.Extras),
		Quantity:      req.Quantity,
		CustomData:    maps.Clone(req.CustomData),
		Files:         slices.Clone(req.Files),
		PriceOverride: req.PriceOverride,
	}
	if r.variant != nil {
		id := r.variant.ID
		candidate.VariantID = &id
	}

	existing := matchLine(items, candidate, r.components)
	newQty := req.Quantity
	exclude := map[string]bool{}
	if existing != nil {
		newQty += existing.Quantity
		exclude[existing.Key] = true
		for _, c := range components(items, existing.Key) {
			exclude[c.Key] = true
		}
	}

	if err := checkQuantity(newQty); err != nil {
		return domain.CartItem{}, err
	}
	for _, c := range r.components {
		if err := checkQuantity(newQty * c.perBundle); err != nil {
			return domain.CartItem{}, err
		}
	}

	if err := checkStock(items, r.product, r.variant, newQty, exclude); err != nil {
		return domain.CartItem{}, err
	}
	for _, c := range r.components {
		if err := checkStock(items, c.product, c.variant, newQty*c.perBundle, exclude); err != nil {
			return domain.CartItem{}, err
		}
	}

	if existing != nil {
		return s.raise(ctx, cartName, existing, newQty)
	}

	candidate.Key = s.newKey()
	candidate.CreatedAt = s.nowFunc()
	for _, o := range s.observers {
		if err := o.BeforeAdd(ctx, &candidate); err != nil {
			return domain.CartItem{}, fmt.Errorf("o.BeforeAdd: %w", err)
		}
	}

	master := candidate.Clone()
	added := []*domain.CartItem{&master}
	for _, c := range r.components {
		comp := &domain.CartItem{
			Key:             s.newKey(),
			CartName:        cartName,
			ProductID:       c.product.ID,
			Options:         maps.Clone(c.options),
			Quantity:        master.Quantity * c.perBundle,
			BundleMasterKey: master.Key,
			CreatedAt:       master.CreatedAt,
		}
		if c.variant != nil {
			id := c.variant.ID
			comp.VariantID = &id
		}
		added = append(added, comp)
	}

	if err := s.save(ctx, added...); err != nil {
		return domain.CartItem{}, err
	}
	s.carts[cartName] = append(items, added...)
	s.invalidate(cartName)

	s.logger.Debug("cart item added",
		zap.String("owner_id", s.ownerID),
		zap.String("cart", cartName),
		zap.String("key", master.Key),
		zap.Int("quantity", master.Quantity))

	for _, o := range s.observers {
		o.AfterAdd(ctx, master.Clone())
	}

	return master.Clone(), nil
}

// raise sets an existing line to quantity, un-postponing it and rescaling its
// bundle components.
func (s *Store) raise(ctx context.Context, cartName string, item *domain.CartItem, quantity int) (domain.CartItem, error) {
	for _, o := range s.observers {
		if err := o.BeforeQuantityChange(ctx, item.Clone(), quantity); err != nil {
			return domain.CartItem{}, fmt.Errorf("o.BeforeQuantityChange: %w", err)
		}
	}

	old := item.Quantity
	comps := components(s.carts[cartName], item.Key)
	err := s.update(ctx, append([]*domain.CartItem{item}, comps...), func() {
		s.rescale(comps, item, quantity)
		item.Postponed = false
		for _, c := range comps {
			c.Postponed = false
		}
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	s.invalidate(cartName)

	for _, o := range s.observers {
		o.AfterQuantityChange(ctx, item.Clone(), old)
	}

	return item.Clone(), nil
}

// rescale sets the master quantity and keeps every component at the same
// per-bundle quantity.
func checkQuantity(quantity int) error {
	if quantity > domain.MaxQuantity {
		return domain.ValidationError("quantity %d exceeds the maximum of %d", quantity, domain.MaxQuantity)
	}
	return nil
}

func (s *Store) rescale(comps []*domain.CartItem, master *domain.CartItem, quantity int) {
	for _, c := range comps {
		perBundle, exact := pricing.PerBundleQuantity(c.Quantity, master.Quantity)
		if !exact {
			s.logger.Warn("bundle component quantity is not a multiple of its bundle",
				zap.String("key", c.Key),
				zap.Int("quantity", c.Quantity),
				zap.Int("bundle_quantity", master.Quantity))
		}
		c.Quantity = perBundle * quantity
	}
	master.Quantity = quantity
}

func (s *Store) resolve(ctx context.Context, req AddRequest) (resolved, error) {
	p, found, err := s.product(ctx, req.ProductID)
	if err != nil {
		return resolved{}, err
	}
	if !found {
		return resolved{}, domain.NewNotFound("product", req.ProductID.String())
	}

	variant, err := resolveSelection(p, req.Options)
	if err != nil {
		return resolved{}, err
	}
	for _, id := range req.Extras {
		if _, ok := p.ExtraOption(id); !ok {
			return resolved{}, domain.ValidationError("product %q has no extra option %q", p.Name, id)
		}
	}

	r := resolved{product: p, variant: variant}
	if len(p.BundleComponents) == 0 {
		if len(req.Bundle) > 0 {
			return resolved{}, domain.ValidationError("product %q is not a bundle", p.Name)
		}
		return r, nil
	}

	selected := map[uuid.UUID]BundleSelection{}
	for _, sel := range req.Bundle {
		if _, ok := p.BundleComponent(sel.ProductID); !ok {
			return resolved{}, domain.ValidationError("bundle %q has no component %s", p.Name, sel.ProductID)
		}
		selected[sel.ProductID] = sel
	}

	for _, c := range p.BundleComponents {
		sel, ok := selected[c.ProductID]
		if !ok && !c.Required {
			continue
		}

		cp, found, err := s.product(ctx, c.ProductID)
		if err != nil {
			return resolved{}, err
		}
		if !ok {
			name := c.ProductID.String()
			if found {
				name = cp.Name
			}
			return resolved{}, &domain.MissingBundleComponentError{Bundle: p.Name, Component: name}
		}
		if !found {
			return resolved{}, &domain.MissingBundleComponentError{Bundle: p.Name, Component: c.ProductID.String()}
		}

		cv, err := resolveSelection(cp, sel.Options)
		if err != nil {
			return resolved{}, err
		}

		perBundle := sel.Quantity
		if perBundle == 0 {
			perBundle = max(c.Quantity, 1)
		}

		r.components = append(r.components, resolvedComponent{
			product:   cp,
			variant:   cv,
			options:   sel.Options,
			perBundle: perBundle,
		})
	}

	return r, nil
}

// resolveSelection checks a product and its option selection and returns the
// matching variant, if the product has variants.
func resolveSelection(p domain.Product, options map[string]string) (*domain.Variant, error) {
	if !p.Enabled {
		return nil, &domain.UnavailableError{Product: p.Name, Disabled: true}
	}
	if !p.OptionsValid(options) {
		return nil, domain.ValidationError("invalid options for product %q", p.Name)
	}
	if len(p.Variants) == 0 {
		return nil, nil
	}

	v, ok := p.VariantFor(options)
	if !ok {
		return nil, domain.ValidationError("no variant of product %q matches the selected options", p.Name)
	}
	if !v.Enabled {
		return nil, &domain.UnavailableError{Product: p.Name, Disabled: true}
	}
	return &v, nil
}

func checkStock(items []*domain.CartItem, p domain.Product, v *domain.Variant, requested int, exclude map[string]bool) error {
	if !p.TrackInventory || p.AllowPreorder {
		return nil
	}

	stock := p.Stock
	if v != nil {
		stock = v.Stock
	}

	total := requested
	for _, it := range items {
		if exclude[it.Key] || it.Postponed || it.ProductID != p.ID || !sameVariant(it.VariantID, v) {
			continue
		}
		total += it.Quantity
	}

	if total > stock {
		return &domain.UnavailableError{Product: p.Name, Requested: total, Available: stock}
	}
	return nil
}

func sameVariant(id *uuid.UUID, v *domain.Variant) bool {
	if id == nil || v == nil {
		return id == nil && v == nil
	}
	return *id == v.ID
}

// matchLine finds a top-level line with the same selection and, for bundles,
// the same component set.
func matchLine(items []*domain.CartItem, candidate domain.CartItem, comps []resolvedComponent) *domain.CartItem {
	want := make([]string, 0, len(comps))
	for _, c := range comps {
		want = append(want, componentSignature(c.product.ID, c.perBundle, c.options))
	}
	sort.Strings(want)

	for _, it := range items {
		if it.IsBundleComponent() || !it.SameSelection(candidate) {
			continue
		}

		existing := components(items, it.Key)
		got := make([]string, 0, len(existing))
		for _, c := range existing {
			perBundle, _ := pricing.PerBundleQuantity(c.Quantity, it.Quantity)
			got = append(got, componentSignature(c.ProductID, perBundle, c.Options))
		}
		sort.Strings(got)

		if slices.Equal(want, got) {
			return it
		}
	}
	return nil
}

func componentSignature(productID uuid.UUID, perBundle int, options map[string]string) string {
	names := slices.Sorted(maps.Keys(options))
	sig := fmt.Sprintf("%s*%d", productID, perBundle)
	for _, n := range names {
		sig += fmt.Sprintf(";%s=%s", n, options[n])
	}
	return sig
}

// RemoveItem deletes a line and its bundle components. It reports false when
// the key is not in the cart.
func (s *Store) RemoveItem(ctx context.Context, cartName, key string) (bool, error) {
	cartName = cartNameOrDefault(cartName)

	items, err := s.load(ctx, cartName)
	if err != nil {
		return false, err
	}

	item := find(items, key)
	if item == nil {
		return false, nil
	}

	if item.IsBundleComponent() {
		if err := s.checkOptionalComponent(ctx, items, item); err != nil {
			return false, err
		}
	}

	if err := s.remove(ctx, cartName, item); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) remove(ctx context.Context, cartName string, item *domain.CartItem) error {
	for _, o := range s.observers {
		if err := o.BeforeRemove(ctx, item.Clone()); err != nil {
			return fmt.Errorf("o.BeforeRemove: %w", err)
		}
	}

	removed := item.Clone()
	keys := []string{item.Key}
	for _, c := range components(s.carts[cartName], item.Key) {
		keys = append(keys, c.Key)
	}

	if err := s.deleteKeys(ctx, cartName, keys); err != nil {
		return err
	}

	for _, o := range s.observers {
		o.AfterRemove(ctx, removed)
	}
	return nil
}

func (s *Store) checkOptionalComponent(ctx context.Context, items []*domain.CartItem, item *domain.CartItem) error {
	master := find(items, item.BundleMasterKey)
	if master == nil {
		return nil
	}

	mp, found, err := s.product(ctx, master.ProductID)
	if err != nil || !found {
		return err
	}

	c, ok := mp.BundleComponent(item.ProductID)
	if !ok || !c.Required {
		return nil
	}

	name := item.ProductID.String()
	if cp, found, err := s.product(ctx, item.ProductID); err == nil && found {
		name = cp.Name
	}
	return &domain.RequiredBundleComponentError{Component: name}
}

// SetQuantity changes the quantity of a line. For bundle components the value
// is per bundle. Zero removes the line. A missing key is a no-op and returns
// the zero item.
func (s *Store) SetQuantity(ctx context.Context, cartName, key string, quantity int) (domain.CartItem, error) {
	if quantity < 0 {
		return domain.CartItem{}, domain.ValidationError("quantity must not be negative")
	}
	if err := checkQuantity(quantity); err != nil {
		return domain.CartItem{}, err
	}
	cartName = cartNameOrDefault(cartName)

	items, err := s.load(ctx, cartName)
	if err != nil {
		return domain.CartItem{}, err
	}

	item := find(items, key)
	if item == nil {
		return domain.CartItem{}, nil
	}

	if item.IsBundleComponent() {
		return s.setComponentQuantity(ctx, cartName, items, item, quantity)
	}

	if quantity == 0 {
		removed := item.Clone()
		return removed, s.remove(ctx, cartName, item)
	}
	if quantity == item.Quantity {
		return item.Clone(), nil
	}

	p, variant, err := s.stockTarget(ctx, item)
	if err != nil {
		return domain.CartItem{}, err
	}

	exclude := map[string]bool{item.Key: true}
	comps := components(items, item.Key)
	for _, c := range comps {
		exclude[c.Key] = true
	}

	if err := checkStock(items, p, variant, quantity, exclude); err != nil {
		return domain.CartItem{}, err
	}
	for _, c := range comps {
		cp, cv, err := s.stockTarget(ctx, c)
		if err != nil {
			return domain.CartItem{}, err
		}
		perBundle, _ := pricing.PerBundleQuantity(c.Quantity, item.Quantity)
		if err := checkQuantity(perBundle * quantity); err != nil {
			return domain.CartItem{}, err
		}
		if err := checkStock(items, cp, cv, perBundle*quantity, exclude); err != nil {
			return domain.CartItem{}, err
		}
	}

	for _, o := range s.observers {
		if err := o.BeforeQuantityChange(ctx, item.Clone(), quantity); err != nil {
			return domain.CartItem{}, fmt.Errorf("o.BeforeQuantityChange: %w", err)
		}
	}

	old := item.Quantity
	err = s.update(ctx, append([]*domain.CartItem{item}, comps...), func() {
		s.rescale(comps, item, quantity)
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	s.invalidate(cartName)

	for _, o := range s.observers {
		o.AfterQuantityChange(ctx, item.Clone(), old)
	}

	return item.Clone(), nil
}

func (s *Store) setComponentQuantity(ctx context.Context, cartName string, items []*domain.CartItem, item *domain.CartItem, perBundle int) (domain.CartItem, error) {
	master := find(items, item.BundleMasterKey)
	if master == nil {
		return domain.CartItem{}, domain.NewNotFound("bundle", item.BundleMasterKey)
	}

	if perBundle == 0 {
		if err := s.checkOptionalComponent(ctx, items, item); err != nil {
			return domain.CartItem{}, err
		}
		removed := item.Clone()
		return removed, s.remove(ctx, cartName, item)
	}

	quantity := perBundle * master.Quantity
	if err := checkQuantity(quantity); err != nil {
		return domain.CartItem{}, err
	}
	if quantity == item.Quantity {
		return item.Clone(), nil
	}

	p, variant, err := s.stockTarget(ctx, item)
	if err != nil {
		return domain.CartItem{}, err
	}
	if err := checkStock(items, p, variant, quantity, map[string]bool{item.Key: true}); err != nil {
		return domain.CartItem{}, err
	}

	for _, o := range s.observers {
		if err := o.BeforeQuantityChange(ctx, item.Clone(), quantity); err != nil {
			return domain.CartItem{}, fmt.Errorf("o.BeforeQuantityChange: %w", err)
		}
	}

	old := item.Quantity
	err = s.update(ctx, []*domain.CartItem{item}, func() {
		item.Quantity = quantity
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	s.invalidate(cartName)

	for _, o := range s.observers {
		o.AfterQuantityChange(ctx, item.Clone(), old)
	}

	return item.Clone(), nil
}

func (s *Store) stockTarget(ctx context.Context, item *domain.CartItem) (domain.Product, *domain.Variant, error) {
	p, found, err := s.product(ctx, item.ProductID)
	if err != nil {
		return domain.Product{}, nil, err
	}
	if !found {
		return domain.Product{}, nil, domain.NewNotFound("product", item.ProductID.String())
	}
	if !p.Enabled {
		return domain.Product{}, nil, &domain.UnavailableError{Product: p.Name, Disabled: true}
	}

	if item.VariantID == nil {
		return p, nil, nil
	}
	v, ok := p.Variant(*item.VariantID)
	if !ok || !v.Enabled {
		return domain.Product{}, nil, &domain.UnavailableError{Product: p.Name, Disabled: true}
	}
	return p, &v, nil
}

// ChangePostponeStatus moves a line, with its bundle components, in or out
// of the saved-for-later state. Postponed lines are excluded from totals.
func (s *Store) ChangePostponeStatus(ctx context.Context, cartName, key string, postponed bool) (domain.CartItem, error) {
	cartName = cartNameOrDefault(cartName)

	items, err := s.load(ctx, cartName)
	if err != nil {
		return domain.CartItem{}, err
	}

	item := find(items, key)
	if item == nil {
		return domain.CartItem{}, domain.NewNotFound("cart item", key)
	}
	if item.IsBundleComponent() {
		return domain.CartItem{}, domain.ValidationError("bundle components follow their bundle")
	}
	if item.Postponed == postponed {
		return item.Clone(), nil
	}

	if !postponed {
		p, variant, err := s.stockTarget(ctx, item)
		if err != nil {
			return domain.CartItem{}, err
		}
		if err := checkStock(items, p, variant, item.Quantity, map[string]bool{item.Key: true}); err != nil {
			return domain.CartItem{}, err
		}
	}

	changed := append([]*domain.CartItem{item}, components(items, item.Key)...)
	err = s.update(ctx, changed, func() {
		for _, it := range changed {
			it.Postponed = postponed
		}
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	s.invalidate(cartName)

	return item.Clone(), nil
}

func (s *Store) SetCustomData(ctx context.Context, cartName, key string, data map[string]string) (domain.CartItem, error) {
	cartName = cartNameOrDefault(cartName)

	items, err := s.load(ctx, cartName)
	if err != nil {
		return domain.CartItem{}, err
	}

	item := find(items, key)
	if item == nil {
		return domain.CartItem{}, domain.NewNotFound("cart item", key)
	}

	err = s.update(ctx, []*domain.CartItem{item}, func() {
		item.CustomData = maps.Clone(data)
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	s.invalidate(cartName)

	return item.Clone(), nil
}

// Clear empties a cart.
func (s *Store) Clear(ctx context.Context, cartName string) error {
	cartName = cartNameOrDefault(cartName)

	if err := s.repo.DeleteCart(ctx, s.ownerID, cartName); err != nil {
		return fmt.Errorf("repo.DeleteCart: %w", err)
	}

	s.carts[cartName] = nil
	delete(s.discounts, cartName)
	s.invalidate(cartName)

	return nil
}
