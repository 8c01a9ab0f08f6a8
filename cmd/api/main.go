package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/bootstrap"
	"github.com/imrishuroy/go-grocery-checkout/internal/config"
	"github.com/imrishuroy/go-grocery-checkout/internal/handlers"
	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
)

func main() {
	log := bootstrap.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx := context.Background()
	clients, err := bootstrap.AWSClients(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to init aws clients")
	}

	stores, err := bootstrap.OpenStore(cfg, clients)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer stores.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewPrometheus(reg)

	env := bootstrap.NewEnv(cfg, stores, clients, prom, log)
	if cfg.RunLocal {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handlers.NewRouter(handlers.RouterConfig{
		Env:        env,
		Prometheus: prom,
		Gatherer:   reg,
		Log:        log,
	})

	log.WithFields(logrus.Fields{
		"storage":   cfg.StorageBackend,
		"reconcile": env.Scheduler != nil,
	}).Info("checkout api configured")

	// RUN_LOCAL=true serves HTTP directly instead of through API Gateway.
	if cfg.RunLocal {
		addr := ":" + cfg.Port
		log.WithField("addr", addr).Info("running local server")
		if err := r.Run(addr); err != nil {
			log.WithError(err).Fatal("failed to run local server")
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
