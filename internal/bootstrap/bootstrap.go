// Package bootstrap wires configuration into the components shared by the
// api and the worker.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/aws"
	"github.com/imrishuroy/go-grocery-checkout/internal/backend"
	"github.com/imrishuroy/go-grocery-checkout/internal/checkout"
	"github.com/imrishuroy/go-grocery-checkout/internal/config"
	"github.com/imrishuroy/go-grocery-checkout/internal/idempotency"
	"github.com/imrishuroy/go-grocery-checkout/internal/kv"
	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
	"github.com/imrishuroy/go-grocery-checkout/internal/orders"
	"github.com/imrishuroy/go-grocery-checkout/internal/payment"
)

// NewLogger returns the JSON logger used by both binaries.
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.Level = logrus.InfoLevel
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.Level = lvl
	}
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
	return log
}

// Stores are the two views of the configured backend. Client data expires
// after STORAGE_TTL; idempotency markers never expire, so a paid session
// stays deduplicated for as long as the backend keeps it.
type Stores struct {
	Client  kv.Store
	Markers kv.Store
	Close   func() error
}

// OpenStore opens the configured storage backend. Stores.Close is never nil.
func OpenStore(cfg config.Config, clients *aws.AWSClients) (Stores, error) {
	noop := func() error { return nil }
	switch cfg.StorageBackend {
	case config.StorageBolt:
		b, err := kv.OpenBolt(cfg.BoltPath)
		if err != nil {
			return Stores{Close: noop}, err
		}
		return Stores{Client: b, Markers: b, Close: b.Close}, nil
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return Stores{
			Client:  kv.NewRedis(rdb, cfg.StorageTTL),
			Markers: kv.NewRedis(rdb, 0),
			Close:   rdb.Close,
		}, nil
	case config.StorageDynamoDB:
		if clients == nil {
			return Stores{Close: noop}, fmt.Errorf("dynamodb storage needs aws clients")
		}
		return Stores{
			Client:  kv.NewDynamo(clients.DynamoDB, cfg.StorageTable, cfg.StorageTTL),
			Markers: kv.NewDynamo(clients.DynamoDB, cfg.StorageTable, 0),
			Close:   noop,
		}, nil
	default:
		m := kv.NewMemory()
		return Stores{Client: m, Markers: m, Close: noop}, nil
	}
}

// NeedsAWS reports whether any configured component talks to AWS.
func NeedsAWS(cfg config.Config) bool {
	return cfg.StorageBackend == config.StorageDynamoDB || cfg.ReconcileQueueURL != ""
}

// NewEnv builds the checkout environment over stores. rec receives checkout events.
func NewEnv(cfg config.Config, stores Stores, clients *aws.AWSClients, rec metrics.Recorder, log logrus.FieldLogger) *checkout.Env {
	b := backend.NewClient(backend.Options{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.RequestTimeout,
		Log:     log,
	})
	markers := idempotency.NewStore(stores.Markers, cfg.MarkerStaleAfter)

	env := &checkout.Env{
		Store:      stores.Client,
		Submitter:  orders.NewSubmitter(orders.NewClient(b), markers, rec, log),
		Gateway:    payment.NewHTTPGateway(b),
		Redirector: payment.TemplateRedirector{Template: cfg.GatewayRedirectURL},
		Payment: payment.Config{
			Currency:    cfg.Currency,
			MaxAttempts: cfg.ConfirmMaxAttempts,
			Delay:       cfg.ConfirmDelay,
		},
		Metrics: rec,
		Log:     log,
	}
	if cfg.ReconcileQueueURL != "" && clients != nil {
		env.Scheduler = &checkout.QueueScheduler{
			Sender: aws.NewPublisher(clients.SQS, cfg.ReconcileQueueURL),
			Delay:  cfg.ReconcileDelay,
		}
	}
	return env
}

// AWSClients returns clients when cfg needs them, else nil.
func AWSClients(ctx context.Context, cfg config.Config) (*aws.AWSClients, error) {
	if !NeedsAWS(cfg) {
		return nil, nil
	}
	return aws.NewAWSClients(ctx)
}
