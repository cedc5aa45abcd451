package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceTier applies from MinQuantity upwards.
type PriceTier struct {
	MinQuantity int
	Price       decimal.Decimal
}

type Dimensions struct {
	Length decimal.Decimal
	Width  decimal.Decimal
	Height decimal.Decimal
}

type ExtraOption struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Variant is an Option-Matrix record: a concrete combination of option values
// with its own stock and, optionally, its own prices.
type Variant struct {
	ID         uuid.UUID
	Options    map[string]string
	Enabled    bool
	Stock      int
	PriceTiers []PriceTier
	Weight     *decimal.Decimal
}

// BundleComponent is one entry of a bundle product's component list.
// Price, when set, replaces the component product's list price inside the bundle.
type BundleComponent struct {
	ProductID uuid.UUID
	Quantity  int
	Required  bool
	Price     *decimal.Decimal
}

type Product struct {
	ID       uuid.UUID
	Name     string
	Enabled  bool
	TaxClass string

	RequiresShipping  bool
	TrackInventory    bool
	AllowPreorder     bool
	Stock             int
	TieredPerCustomer bool

	PriceTiers []PriceTier
	Weight     decimal.Decimal
	Volume     decimal.Decimal
	Dimensions Dimensions

	// Options lists the allowed values per option name.
	Options          map[string][]string
	ExtraOptions     []ExtraOption
	Variants         []Variant
	BundleComponents []BundleComponent
}

// TierPrice returns the price of the highest tier whose minimum is reached.
func TierPrice(tiers []PriceTier, quantity int) decimal.Decimal {
	price := decimal.Zero
	best := -1
	for _, t := range tiers {
		if t.MinQuantity <= quantity && t.MinQuantity > best {
			best = t.MinQuantity
			price = t.Price
		}
	}
	if best < 0 && len(tiers) > 0 {
		// below every tier: fall back to the lowest one
		lowest := tiers[0]
		for _, t := range tiers[1:] {
			if t.MinQuantity < lowest.MinQuantity {
				lowest = t
			}
		}
		price = lowest.Price
	}
	return price
}

func (p Product) Variant(id uuid.UUID) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// VariantFor returns the variant whose option values are all present in options.
func (p Product) VariantFor(options map[string]string) (Variant, bool) {
	for _, v := range p.Variants {
		if len(v.Options) == 0 {
			continue
		}
		match := true
		for name, value := range v.Options {
			if options[name] != value {
				match = false
				break
			}
		}
		if match {
			return v, true
		}
	}
	return Variant{}, false
}

func (p Product) ExtraOption(id string) (ExtraOption, bool) {
	for _, e := range p.ExtraOptions {
		if e.ID == id {
			return e, true
		}
	}
	return ExtraOption{}, false
}

func (p Product) BundleComponent(productID uuid.UUID) (BundleComponent, bool) {
	for _, c := range p.BundleComponents {
		if c.ProductID == productID {
			return c, true
		}
	}
	return BundleComponent{}, false
}

// OptionsValid reports whether every selected option is still offered.
func (p Product) OptionsValid(options map[string]string) bool {
	for name, value := range options {
		allowed, ok := p.Options[name]
		if !ok {
			return false
		}
		found := false
		for _, a := range allowed {
			if a == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
