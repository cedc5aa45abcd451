package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/nikolayk812/cartprice/internal/domain"
)

var (
	couponPattern   = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)
	cartNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)
)

// New returns a validator with the custom tags registered:
//
//	coupon    3-32 chars of A-Z, 0-9, '_' or '-' (case-insensitive)
//	cartname  1-64 chars of a-z, 0-9, '_' or '-'
func New() *validatorv10.Validate {
	v := validatorv10.New()

	_ = v.RegisterValidation("coupon", func(fl validatorv10.FieldLevel) bool {
		return ValidCoupon(fl.Field().String())
	})
	_ = v.RegisterValidation("cartname", func(fl validatorv10.FieldLevel) bool {
		return cartNamePattern.MatchString(fl.Field().String())
	})

	return v
}

func ValidCoupon(code string) bool {
	return couponPattern.MatchString(strings.ToUpper(code))
}

// Check validates s and maps failures to a domain.ErrValidation error.
func Check(v *validatorv10.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	fields := FieldErrors(err)
	if len(fields) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	names := make([]string, 0, len(fields))
	for name, tag := range fields {
		names = append(names, fmt.Sprintf("%s (%s)", name, tag))
	}
	sort.Strings(names)

	return fmt.Errorf("%w: invalid %s", domain.ErrValidation, strings.Join(names, ", "))
}

// FieldErrors returns the failed tag per struct field.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}

	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Tag()
		}
	}
	return out
}
