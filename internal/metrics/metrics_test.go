package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.Record(context.Background(), EventOrderCreated)
	p.Record(context.Background(), EventOrderCreated)
	p.Record(context.Background(), EventDuplicateAbsorbed)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.events.WithLabelValues(string(EventOrderCreated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.events.WithLabelValues(string(EventDuplicateAbsorbed))))
}

func TestPrometheus_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	r := gin.New()
	r.Use(p.Middleware())
	r.GET("/cart", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(Handler(reg)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.requests.WithLabelValues("/cart", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "grocery_http_requests_total")
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(context.Background(), EventReconciled)
}
