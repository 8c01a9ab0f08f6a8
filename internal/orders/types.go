package orders

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-grocery-checkout/internal/cart"
	"github.com/imrishuroy/go-grocery-checkout/internal/validation"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	CashOnPickup PaymentMethod = "CASH_ON_PICKUP"
	Online       PaymentMethod = "ONLINE"
)

// StatusPending is the status every new order is created with.
const StatusPending = "PENDING"

// Draft is the order being assembled during checkout. It has no stored
// total; Total is always recomputed from Items.
type Draft struct {
	CustomerName  string        `json:"customerName"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Notes         string        `json:"notes"`
	PickupDate    string        `json:"pickupDate"`
	PickupTime    string        `json:"pickupTime"`
	Username      string        `json:"username"`
	Items         []cart.Line   `json:"items"`
}

func (d Draft) Total() decimal.Decimal {
	return cart.ComputeTotal(d.Items)
}

var validate = validation.New()

// ValidateCustomerInfo returns field -> message; an empty map means valid.
func (d Draft) ValidateCustomerInfo() map[string]string {
	return validation.ValidateCustomerInfo(validate, validation.CustomerInfo{
		CustomerName: d.CustomerName,
		Email:        d.Email,
		Phone:        d.Phone,
	})
}

// Digest identifies the draft's content. Two drafts with equal digests
// describe the same order.
func (d Draft) Digest() string {
	type item struct {
		ProductID int64  `json:"p"`
		Units     string `json:"u"`
		UnitPrice string `json:"c"`
	}
	canon := struct {
		Name, Email, Phone, Method, Notes, Date, Time, User string
		Items                                               []item
	}{
		Name:   strings.TrimSpace(d.CustomerName),
		Email:  strings.ToLower(strings.TrimSpace(d.Email)),
		Phone:  d.Phone,
		Method: string(d.PaymentMethod),
		Notes:  d.Notes,
		Date:   d.PickupDate,
		Time:   d.PickupTime,
		User:   d.Username,
	}
	for _, l := range d.Items {
		canon.Items = append(canon.Items, item{ProductID: l.ProductID, Units: l.Units.String(), UnitPrice: l.UnitPrice.String()})
	}
	raw, _ := json.Marshal(canon)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ItemRequest is one line of the order creation request.
type ItemRequest struct {
	ProductID int64       `json:"productId"`
	Units     json.Number `json:"units"`
}

// CreateRequest is the body of POST /api/orders.
type CreateRequest struct {
	CustomerName  string        `json:"customerName"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	PickupDate    string        `json:"pickupDate"`
	PickupTime    string        `json:"pickupTime"`
	PaymentMethod string        `json:"paymentMethod"`
	Notes         string        `json:"notes"`
	Items         []ItemRequest `json:"items"`
	TotalAmount   json.Number   `json:"totalAmount"`
	Status        string        `json:"status"`
	Username      string        `json:"username"`
}

// Request builds the backend order body. Username falls back to the email
// for guests.
func (d Draft) Request() CreateRequest {
	items := make([]ItemRequest, 0, len(d.Items))
	for _, l := range d.Items {
		items = append(items, ItemRequest{ProductID: l.ProductID, Units: json.Number(l.Units.String())})
	}
	username := strings.TrimSpace(d.Username)
	if username == "" {
		username = strings.TrimSpace(d.Email)
	}
	return CreateRequest{
		CustomerName:  strings.TrimSpace(d.CustomerName),
		Email:         strings.TrimSpace(d.Email),
		Phone:         d.Phone,
		PickupDate:    d.PickupDate,
		PickupTime:    d.PickupTime,
		PaymentMethod: string(d.PaymentMethod),
		Notes:         d.Notes,
		Items:         items,
		TotalAmount:   json.Number(cart.RoundForDisplay(d.Total()).StringFixed(2)),
		Status:        StatusPending,
		Username:      username,
	}
}
