package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/backend"
)

// Client creates orders on the backend.
type Client struct {
	backend backend.Doer
}

func NewClient(b backend.Doer) *Client {
	return &Client{backend: b}
}

// CreateOrder posts req with attemptKey as the Idempotency-Key header and
// returns the new order id. Errors are *apperr.Error.
func (c *Client) CreateOrder(ctx context.Context, req CreateRequest, attemptKey string) (int64, error) {
	header := http.Header{}
	header.Set("Idempotency-Key", attemptKey)

	var out struct {
		OrderID json.Number `json:"orderId"`
	}
	if err := c.backend.Do(ctx, http.MethodPost, "/api/orders", header, req, &out); err != nil {
		return 0, translate(err)
	}
	id, err := strconv.ParseInt(out.OrderID.String(), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindNetwork, "The store did not confirm your order. Please try again.")
	}
	return id, nil
}

// translate turns a backend error into the user-facing taxonomy.
func translate(err error) *apperr.Error {
	var se *backend.StatusError
	if errors.As(err, &se) && se.Rejected() {
		msg := se.Message
		if se.Status == http.StatusConflict || strings.Contains(strings.ToLower(msg), "stock") {
			if msg == "" {
				msg = "Some items are no longer available in the quantity you chose."
			}
			return apperr.Wrap(apperr.KindStock, msg, err)
		}
		if msg == "" {
			msg = "The store could not accept this order. Please review it and try again."
		}
		return apperr.Wrap(apperr.KindValidation, msg, err)
	}
	return apperr.Wrap(apperr.KindNetwork, "We couldn't reach the store. Your order was not placed; please try again.", err)
}
