package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors unwrap to one of these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnavailable     = errors.New("unavailable")
	ErrNotFound        = errors.New("not found")
	ErrStaleState      = errors.New("stale checkout state")
	ErrProviderFailure = errors.New("provider failure")
)

func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UnavailableError reports a stock shortfall or a disabled product.
type UnavailableError struct {
	Product   string
	Requested int
	Available int
	Disabled  bool
}

func (e *UnavailableError) Error() string {
	if e.Disabled {
		return fmt.Sprintf("product %q is not available", e.Product)
	}
	return fmt.Sprintf("product %q: requested %d, only %d left in stock", e.Product, e.Requested, e.Available)
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

type MissingBundleComponentError struct {
	Bundle    string
	Component string
}

func (e *MissingBundleComponentError) Error() string {
	return fmt.Sprintf("bundle %q: required component %q is missing", e.Bundle, e.Component)
}

func (e *MissingBundleComponentError) Unwrap() error { return ErrUnavailable }

type RequiredBundleComponentError struct {
	Component string
}

func (e *RequiredBundleComponentError) Error() string {
	return fmt.Sprintf("component %q is required and cannot be removed from the bundle", e.Component)
}

func (e *RequiredBundleComponentError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.What)
	}
	return fmt.Sprintf("%s %q not found", e.What, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFound(what, id string) error {
	return &NotFoundError{What: what, ID: id}
}

// QuoteNoLongerApplicableError is returned when a previously selected
// shipping service is absent from a fresh rate set.
type QuoteNoLongerApplicableError struct {
	QuoteID string
}

func (e *QuoteNoLongerApplicableError) Error() string {
	return fmt.Sprintf("shipping quote %q is no longer applicable", e.QuoteID)
}

func (e *QuoteNoLongerApplicableError) Unwrap() error { return ErrNotFound }

type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProviderFailure, e.Err} }
