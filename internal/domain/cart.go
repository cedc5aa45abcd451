package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCartName = "main"

// MaxQuantity bounds the quantity of any single cart line, bundle components
// included.
const MaxQuantity = 1_000_000

type Cart struct {
	OwnerID string
	Name    string
	Items   []CartItem
}

type CartItem struct {
	Key       string
	CartName  string
	ProductID uuid.UUID
	VariantID *uuid.UUID

	// Options is order-irrelevant, Extras keeps selection order.
	Options    map[string]string
	Extras     []string
	Quantity   int
	Postponed  bool
	CustomData map[string]string
	Files      []string

	BundleMasterKey string
	PriceOverride   *decimal.Decimal

	// CartDiscount is the per-unit amount assigned by the discount evaluator.
	// It is request-scoped and never persisted.
	CartDiscount decimal.Decimal `json:"-"`

	CreatedAt time.Time
}

func (i CartItem) IsBundleComponent() bool {
	return i.BundleMasterKey != ""
}

func (i CartItem) Clone() CartItem {
	c := i
	c.Options = maps.Clone(i.Options)
	c.Extras = slices.Clone(i.Extras)
	c.CustomData = maps.Clone(i.CustomData)
	c.Files = slices.Clone(i.Files)
	if i.VariantID != nil {
		v := *i.VariantID
		c.VariantID = &v
	}
	if i.PriceOverride != nil {
		p := *i.PriceOverride
		c.PriceOverride = &p
	}
	return c
}

// SameSelection reports whether two items describe the same purchasable line,
// ignoring quantity and postponed state.
func (i CartItem) SameSelection(o CartItem) bool {
	if i.ProductID != o.ProductID || i.BundleMasterKey != o.BundleMasterKey {
		return false
	}
	if (i.VariantID == nil) != (o.VariantID == nil) || (i.VariantID != nil && *i.VariantID != *o.VariantID) {
		return false
	}
	return equalMaps(i.Options, o.Options) &&
		slices.Equal(i.Extras, o.Extras) &&
		equalMaps(i.CustomData, o.CustomData) &&
		slices.Equal(i.Files, o.Files)
}

func equalMaps(a, b map[string]string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return maps.Equal(a, b)
}
