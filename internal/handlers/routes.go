package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/checkout"
	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
	"github.com/imrishuroy/go-grocery-checkout/internal/validation"
)

// RouterConfig groups the dependencies of the HTTP surface.
type RouterConfig struct {
	Env *checkout.Env
	// Prometheus and Gatherer are optional; without them /metrics is not served.
	Prometheus *metrics.Prometheus
	Gatherer   prometheus.Gatherer
	Log        logrus.FieldLogger
}

// NewRouter builds the storefront API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Prometheus != nil {
		r.Use(cfg.Prometheus.Middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(cfg.Gatherer)))
	}

	v := validation.New()
	shop := r.Group("/", ClientSession())
	RegisterCartRoutes(shop, cfg.Env, v, cfg.Log)
	RegisterCheckoutRoutes(shop, cfg.Env, v, cfg.Log)
	return r
}
