// Package checkout sequences a checkout from the frozen cart through
// payment to a confirmed order. Every request rebuilds the flow from
// client storage, so a flow survives the gateway redirect and reloads.
package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-grocery-checkout/internal/cart"
	"github.com/imrishuroy/go-grocery-checkout/internal/orders"
)

// State is a step of the checkout.
type State string

const (
	CollectingInfo  State = "COLLECTING_INFO"
	ReviewingOrder  State = "REVIEWING_ORDER"
	AwaitingPayment State = "AWAITING_PAYMENT"
	Confirmed       State = "CONFIRMED"
)

// AttemptStatus tracks one submission attempt.
type AttemptStatus string

const (
	AttemptDrafting        AttemptStatus = "DRAFTING"
	AttemptAwaitingPayment AttemptStatus = "AWAITING_PAYMENT"
	AttemptSubmitting      AttemptStatus = "SUBMITTING"
	AttemptConfirmed       AttemptStatus = "CONFIRMED"
	AttemptFailed          AttemptStatus = "FAILED"
)

// Attempt identifies one logical order attempt. Key is reused for as long
// as the draft content (Digest) is unchanged.
type Attempt struct {
	Key       string        `json:"key"`
	Digest    string        `json:"digest"`
	SessionID string        `json:"sessionId,omitempty"`
	OrderID   int64         `json:"orderId,omitempty"`
	Status    AttemptStatus `json:"status"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// InFlight is true while the attempt may still turn into an order without user action.
func (a *Attempt) InFlight() bool {
	return a != nil && (a.Status == AttemptAwaitingPayment || a.Status == AttemptSubmitting)
}

// Covers reports whether the attempt was opened for exactly this draft.
func (a *Attempt) Covers(d orders.Draft) bool {
	return a != nil && a.Digest == d.Digest()
}

// flow is the persisted checkout. Draft.Items always mirrors Snapshot.
type flow struct {
	State     State         `json:"state"`
	Draft     orders.Draft  `json:"draft"`
	Snapshot  cart.Snapshot `json:"snapshot"`
	Attempt   *Attempt      `json:"attempt,omitempty"`
	Notice    string        `json:"notice,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// confirmation is kept after the flow is cleared so that returning to the
// gateway landing page shows the existing order.
type confirmation struct {
	OrderID     int64     `json:"orderId"`
	AttemptKey  string    `json:"attemptKey"`
	Total       string    `json:"total"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// Details are the user-editable parts of the draft.
type Details struct {
	CustomerName  string
	Email         string
	Phone         string
	PaymentMethod orders.PaymentMethod
	Notes         string
	PickupDate    string
	PickupTime    string
	Username      string
}

// View is what the presentation layer renders after every operation.
type View struct {
	State         State         `json:"state"`
	Draft         *orders.Draft `json:"draft,omitempty"`
	Total         string        `json:"total"`
	AttemptStatus AttemptStatus `json:"attemptStatus,omitempty"`
	Notice        string        `json:"notice,omitempty"`
	OrderID       int64         `json:"orderId,omitempty"`
	RedirectURL   string        `json:"redirectUrl,omitempty"`
}

func displayTotal(total decimal.Decimal) string {
	return cart.RoundForDisplay(total).StringFixed(2)
}

func (f *flow) view() View {
	draft := f.Draft
	v := View{
		State:  f.State,
		Draft:  &draft,
		Total:  displayTotal(f.Draft.Total()),
		Notice: f.Notice,
	}
	if f.Attempt != nil {
		v.AttemptStatus = f.Attempt.Status
		v.OrderID = f.Attempt.OrderID
	}
	return v
}
