package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-grocery-checkout/internal/aws"
	"github.com/imrishuroy/go-grocery-checkout/internal/bootstrap"
	"github.com/imrishuroy/go-grocery-checkout/internal/config"
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

	var rec metrics.Recorder = metrics.Nop{}
	if clients != nil {
		rec = aws.NewCloudWatchRecorder(clients.CloudWatch, log)
	} else {
		log.Warn("no aws clients configured, reconcile metrics are not published")
	}
	env := bootstrap.NewEnv(cfg, stores, clients, rec, log)
	// The worker never schedules further reconciliations.
	env.Scheduler = nil
	p := NewProcessor(env, log)

	// RUN_LOCAL=true processes a single message from LOCAL_SQS_BODY and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			log.Fatal("LOCAL_SQS_BODY is required when RUN_LOCAL=true")
		}
		resp, err := p.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local", Body: body}}})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			log.WithError(err).Fatal("local reconcile failed")
		}
		return
	}

	lambda.Start(p.Handle)
}
