package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nikolayk812/cartprice/internal/domain"
	"github.com/nikolayk812/cartprice/internal/pricing"
	"go.uber.org/zap"
)

// MergeBehavior decides what happens to an anonymous cart when its owner
// logs in.
type MergeBehavior string

const (
	MergeIgnore   MergeBehavior = "ignore"
	MergeOverride MergeBehavior = "override"
	MergeSum      MergeBehavior = "sum"
	MergeMax      MergeBehavior = "max"
)

func ParseMergeBehavior(s string) (MergeBehavior, error) {
	switch b := MergeBehavior(strings.ToLower(strings.TrimSpace(s))); b {
	case MergeIgnore, MergeOverride, MergeSum, MergeMax:
		return b, nil
	case "":
		return MergeSum, nil
	default:
		return "", fmt.Errorf("unknown merge behavior %q", s)
	}
}

// Merge folds an anonymous cart into the store's cart of the same name.
// Items that fail validation or availability are skipped and logged.
func (s *Store) Merge(ctx context.Context, anon domain.Cart, behavior MergeBehavior) error {
	cartName := cartNameOrDefault(anon.Name)

	switch behavior {
	case MergeIgnore:
		return nil
	case MergeOverride:
		if err := s.Clear(ctx, cartName); err != nil {
			return err
		}
	case MergeSum, MergeMax:
		if err := s.postponeAll(ctx, cartName); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown merge behavior %q", behavior)
	}

	for _, it := range anon.Items {
		if it.IsBundleComponent() {
			continue
		}

		req := addRequestFor(cartName, it, anon.Items)
		err := s.mergeItem(ctx, req, behavior)
		if err == nil {
			continue
		}
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrUnavailable) || errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("skipped anonymous cart item on merge",
				zap.String("owner_id", s.ownerID),
				zap.String("cart", cartName),
				zap.String("product_id", it.ProductID.String()),
				zap.Error(err))
			continue
		}
		return err
	}

	return nil
}

func (s *Store) mergeItem(ctx context.Context, req AddRequest, behavior MergeBehavior) error {
	if behavior != MergeMax {
		_, err := s.AddItem(ctx, req)
		return err
	}

	items, err := s.load(ctx, req.CartName)
	if err != nil {
		return err
	}
	r, err := s.resolve(ctx, req)
	if err != nil {
		return err
	}

	candidate := domain.CartItem{
		ProductID:  req.ProductID,
		Options:    req.Options,
		Extras:     req.Extras,
		CustomData: req.CustomData,
		Files:      req.Files,
	}
	if r.variant != nil {
		id := r.variant.ID
		candidate.VariantID = &id
	}

	existing := matchLine(items, candidate, r.components)
	if existing == nil {
		_, err := s.AddItem(ctx, req)
		return err
	}

	if req.Quantity > existing.Quantity {
		if _, err := s.SetQuantity(ctx, req.CartName, existing.Key, req.Quantity); err != nil {
			return err
		}
	}
	_, err = s.ChangePostponeStatus(ctx, req.CartName, existing.Key, false)
	return err
}

func (s *Store) postponeAll(ctx context.Context, cartName string) error {
	items, err := s.load(ctx, cartName)
	if err != nil {
		return err
	}

	var changed []*domain.CartItem
	for _, it := range items {
		if !it.Postponed {
			changed = append(changed, it)
		}
	}

	err = s.update(ctx, changed, func() {
		for _, it := range changed {
			it.Postponed = true
		}
	})
	if err != nil {
		return err
	}
	s.invalidate(cartName)

	return nil
}

func addRequestFor(cartName string, master domain.CartItem, all []domain.CartItem) AddRequest {
	req := AddRequest{
		ProductID:     master.ProductID,
		CartName:      cartName,
		Quantity:      master.Quantity,
		Options:       master.Options,
		Extras:        master.Extras,
		CustomData:    master.CustomData,
		Files:         master.Files,
		PriceOverride: master.PriceOverride,
	}

	for _, c := range all {
		if c.BundleMasterKey != master.Key {
			continue
		}
		perBundle, _ := pricing.PerBundleQuantity(c.Quantity, master.Quantity)
		req.Bundle = append(req.Bundle, BundleSelection{
			ProductID: c.ProductID,
			Quantity:  perBundle,
			Options:   c.Options,
		})
	}

	return req
}
