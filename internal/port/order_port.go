package port

import (
	"context"
	"encoding/json"

	"github.com/nikolayk812/cartprice/internal/domain"
)

type PaymentMethod struct {
	ID   string
	Name string
}

type PaymentMethods interface {
	GetPaymentMethod(ctx context.Context, id string) (PaymentMethod, error)
}

type OrderRequest struct {
	CustomerID    string
	Billing       domain.Address
	Shipping      *domain.Address
	ShippingQuote *domain.ShippingQuote
	PaymentMethod PaymentMethod
	CouponCode    string
	Notes         string
	Items         []domain.CartItem
	Totals        domain.Totals
	CustomFields  map[string]json.RawMessage
}

type OrderService interface {
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
}

type CustomerService interface {
	Register(ctx context.Context, billing domain.Address, password string) (string, error)
}
