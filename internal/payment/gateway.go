// Package payment drives the hosted-checkout payment gateway: it mints a
// session, hands the browser off to the gateway and confirms the payment
// once the browser comes back.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/backend"
	"github.com/imrishuroy/go-grocery-checkout/internal/orders"
)

// CreateSessionRequest is the body of the session creation call.
type CreateSessionRequest struct {
	Amount        int64                `json:"amount"` // minor units
	Currency      string               `json:"currency"`
	CustomerName  string               `json:"customerName"`
	Email         string               `json:"email"`
	Phone         string               `json:"phone"`
	PickupDate    string               `json:"pickupDate"`
	PickupTime    string               `json:"pickupTime"`
	PaymentMethod string               `json:"paymentMethod"`
	Notes         string               `json:"notes"`
	Items         []orders.ItemRequest `json:"items"`
	TotalAmount   json.Number          `json:"totalAmount"`
	Username      string               `json:"username"`
}

// Status is the gateway's view of a session.
type Status struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

// Paid is true only for a completed session whose charge went through.
func (s Status) Paid() bool {
	return s.Status == "complete" && s.PaymentStatus == "paid"
}

// Gateway is the backend's payment-session contract.
type Gateway interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (string, error)
	SessionStatus(ctx context.Context, sessionID string) (Status, error)
}

// HTTPGateway calls the backend's gateway endpoints.
type HTTPGateway struct {
	backend backend.Doer
}

func NewHTTPGateway(b backend.Doer) *HTTPGateway {
	return &HTTPGateway{backend: b}
}

func (g *HTTPGateway) CreateSession(ctx context.Context, req CreateSessionRequest) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := g.backend.Do(ctx, http.MethodPost, "/api/stripe/create-checkout-session", nil, req, &out); err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("create checkout session: response has no sessionId")
	}
	return out.SessionID, nil
}

func (g *HTTPGateway) SessionStatus(ctx context.Context, sessionID string) (Status, error) {
	var out Status
	path := "/api/stripe/session-status/" + url.PathEscape(sessionID)
	if err := g.backend.Do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return Status{}, fmt.Errorf("session status: %w", err)
	}
	return out, nil
}

// Redirector builds the hosted payment page URL for a session.
type Redirector interface {
	RedirectURL(sessionID string) (string, error)
}

// TemplateRedirector substitutes {session_id} in Template.
type TemplateRedirector struct {
	Template string
}

func (r TemplateRedirector) RedirectURL(sessionID string) (string, error) {
	if !strings.Contains(r.Template, "{session_id}") {
		return "", apperr.New(apperr.KindGateway, "Payment page is not configured.")
	}
	raw := strings.ReplaceAll(r.Template, "{session_id}", url.PathEscape(sessionID))
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", apperr.Wrap(apperr.KindGateway, "Payment page is not configured.", err)
	}
	return u.String(), nil
}
