// Package metrics counts checkout events and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event names one observable step of a checkout.
type Event string

const (
	EventOrderCreated          Event = "order_created"
	EventDuplicateAbsorbed     Event = "duplicate_absorbed"
	EventSubmissionRejected    Event = "submission_rejected"
	EventSubmissionFailed      Event = "submission_failed"
	EventPaymentSessionCreated Event = "payment_session_created"
	EventPaymentConfirmed      Event = "payment_confirmed"
	EventPaymentConfirmTimeout Event = "payment_confirm_timeout"
	EventPaymentCancelled      Event = "payment_cancelled"
	EventReconciled            Event = "reconciled"
)

// Recorder receives checkout events.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// Prometheus exposes checkout events and HTTP request metrics.
type Prometheus struct {
	events    *prometheus.CounterVec
	requests  *prometheus.CounterVec
	latencyMS *prometheus.HistogramVec
}

// NewPrometheus registers the collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grocery",
		Subsystem: "checkout",
		Name:      "events_total",
		Help:      "Checkout events by kind.",
	}, []string{"event"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grocery",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grocery",
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
	}, []string{"handler"})

	reg.MustRegister(events, requests, latency)
	return &Prometheus{events: events, requests: requests, latencyMS: latency}
}

func (p *Prometheus) Record(_ context.Context, event Event) {
	p.events.WithLabelValues(string(event)).Inc()
}

// Middleware records count and latency per route template.
func (p *Prometheus) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		p.requests.WithLabelValues(handler, strconv.Itoa(c.Writer.Status())).Inc()
		p.latencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
