package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/backend"
)

func newBackend(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(backend.NewClient(backend.Options{BaseURL: srv.URL, Timeout: time.Second, Log: logrus.New()}))
}

func TestClient_CreateOrder(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "attempt-1", r.Header.Get("Idempotency-Key"))

		var req CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, json.Number("200.00"), req.TotalAmount)
		assert.Equal(t, "PENDING", req.Status)
		require.Len(t, req.Items, 1)
		assert.Equal(t, int64(1), req.Items[0].ProductID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderId":77,"status":"PENDING"}`))
	})

	id, err := c.CreateOrder(context.Background(), sampleDraft(CashOnPickup).Request(), "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
}

func TestClient_CreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperr.Kind
	}{
		{"missing order id", http.StatusCreated, `{"status":"PENDING"}`, apperr.KindNetwork},
		{"null order id", http.StatusOK, `{"orderId":null}`, apperr.KindNetwork},
		{"conflict", http.StatusConflict, `{"message":"Requested units exceed availability"}`, apperr.KindStock},
		{"stock message", http.StatusBadRequest, `{"message":"Insufficient stock for product 1"}`, apperr.KindStock},
		{"validation", http.StatusBadRequest, `{"message":"pickupDate is required"}`, apperr.KindValidation},
		{"server error", http.StatusInternalServerError, `oops`, apperr.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.CreateOrder(context.Background(), sampleDraft(CashOnPickup).Request(), "k")
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestClient_StringOrderID(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":"91"}`))
	})
	id, err := c.CreateOrder(context.Background(), sampleDraft(CashOnPickup).Request(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(91), id)
}
