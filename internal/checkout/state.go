package checkout

import (
	"encoding/json"
	"slices"

	"github.com/nikolayk812/cartprice/internal/domain"
)

// SessionKey namespaces the checkout state inside the host session.
const SessionKey = "checkout"

type Step string

const (
	StepBillingInfo    Step = "billing_info"
	StepShippingInfo   Step = "shipping_info"
	StepShippingMethod Step = "shipping_method"
	StepPaymentMethod  Step = "payment_method"
	StepReview         Step = "review"
	StepPay            Step = "pay"
)

var steps = []Step{
	StepBillingInfo,
	StepShippingInfo,
	StepShippingMethod,
	StepPaymentMethod,
	StepReview,
	StepPay,
}

func (s Step) Valid() bool {
	return slices.Contains(steps, s)
}

func (s Step) index() int {
	return slices.Index(steps, s)
}

// State is the persisted checkout progress of one session.
type State struct {
	Step Step `json:"checkout_step,omitempty"`
	// CartID is the cart fingerprint the state was built against.
	CartID string `json:"cart_id,omitempty"`

	Billing       *domain.Address       `json:"billing_info,omitempty"`
	Shipping      *domain.Address       `json:"shipping_info,omitempty"`
	ShippingQuote *domain.ShippingQuote `json:"shipping_quote,omitempty"`
	// NoShipping marks a cart without shippable lines.
	NoShipping      bool   `json:"no_shipping,omitempty"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
	CouponCode      string `json:"coupon_code,omitempty"`
	Notes           string `json:"notes,omitempty"`
	GuestPassword   string `json:"guest_password,omitempty"`

	CustomFields map[string]json.RawMessage `json:"custom_fields,omitempty"`
}

// Field names a part of State for partial resets.
type Field string

const (
	FieldStep          Field = "checkout_step"
	FieldCartID        Field = "cart_id"
	FieldBilling       Field = "billing_info"
	FieldShipping      Field = "shipping_info"
	FieldShippingQuote Field = "shipping_quote"
	FieldPaymentMethod Field = "payment_method"
	FieldCouponCode    Field = "coupon_code"
	FieldNotes         Field = "notes"
	FieldGuestPassword Field = "guest_password"
	FieldCustomFields  Field = "custom_fields"
)

func (st *State) clear(fields ...Field) {
	if len(fields) == 0 {
		*st = State{}
		return
	}

	for _, f := range fields {
		switch f {
		case FieldStep:
			st.Step = ""
		case FieldCartID:
			st.CartID = ""
		case FieldBilling:
			st.Billing = nil
		case FieldShipping:
			st.Shipping = nil
		case FieldShippingQuote:
			st.ShippingQuote = nil
			st.NoShipping = false
		case FieldPaymentMethod:
			st.PaymentMethodID = ""
		case FieldCouponCode:
			st.CouponCode = ""
		case FieldNotes:
			st.Notes = ""
		case FieldGuestPassword:
			st.GuestPassword = ""
		case FieldCustomFields:
			st.CustomFields = nil
		}
	}
}

func (st State) currentStep() Step {
	if st.Step.Valid() {
		return st.Step
	}
	return StepBillingInfo
}
