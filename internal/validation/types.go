package validation

import "github.com/shopspring/decimal"

// CustomerInfo is the contact part of an order.
type CustomerInfo struct {
	CustomerName string `json:"customerName" validate:"notblank"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"phone10"`
}

// ProductRequest is the payload for POST /cart/items and POST /wishlist/toggle.
// Units is only read when adding to the cart.
type ProductRequest struct {
	ProductID      int64            `json:"productId" validate:"required,gt=0"`
	ProductName    string           `json:"productName" validate:"required"`
	UnitType       string           `json:"unitType" validate:"required,oneof=DISCRETE WEIGHT"`
	UnitPrice      decimal.Decimal  `json:"unitPrice"`
	UnitsAvailable decimal.Decimal  `json:"unitsAvailable"`
	Units          *decimal.Decimal `json:"units,omitempty"`
}

// UpdateUnitsRequest is the payload for PATCH /cart/items/:productId.
type UpdateUnitsRequest struct {
	Units decimal.Decimal `json:"units"`
}

// CheckoutDetailsRequest is the payload for PUT /checkout/details.
// Customer fields are checked by the checkout flow on advance, not here.
type CheckoutDetailsRequest struct {
	CustomerName  string `json:"customerName" validate:"max=120"`
	Email         string `json:"email" validate:"max=254"`
	Phone         string `json:"phone" validate:"max=32"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=CASH_ON_PICKUP ONLINE"`
	Notes         string `json:"notes" validate:"max=500"`
	PickupDate    string `json:"pickupDate" validate:"omitempty,datetime=2006-01-02"`
	PickupTime    string `json:"pickupTime" validate:"omitempty,datetime=15:04"`
	Username      string `json:"username" validate:"max=64"`
}
