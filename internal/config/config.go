// Package config reads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageBolt     = "bolt"
	StorageRedis    = "redis"
	StorageDynamoDB = "dynamodb"
)

type Config struct {
	Port     string
	RunLocal bool

	StorageBackend string
	BoltPath       string
	RedisAddr      string
	StorageTable   string
	StorageTTL     time.Duration

	BackendBaseURL string
	RequestTimeout time.Duration

	GatewayRedirectURL string
	Currency           string
	ConfirmMaxAttempts int
	ConfirmDelay       time.Duration

	MarkerStaleAfter time.Duration

	ReconcileQueueURL string
	ReconcileDelay    time.Duration

	AWSRegion           string
	AWSEndpointOverride string
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv and validates it.
func LoadFrom(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}
	cfg := Config{
		Port:     r.str("PORT", "8080"),
		RunLocal: r.boolean("RUN_LOCAL"),

		StorageBackend: strings.ToLower(r.str("STORAGE_BACKEND", StorageMemory)),
		BoltPath:       r.str("BOLT_PATH", "checkout.db"),
		RedisAddr:      r.str("REDIS_ADDR", "localhost:6379"),
		StorageTable:   r.str("STORAGE_TABLE", "grocery-checkout"),
		StorageTTL:     r.duration("STORAGE_TTL", 72*time.Hour),

		BackendBaseURL: r.str("BACKEND_BASE_URL", ""),
		RequestTimeout: r.duration("REQUEST_TIMEOUT", 10*time.Second),

		GatewayRedirectURL: r.str("GATEWAY_REDIRECT_URL", ""),
		Currency:           r.str("CURRENCY", "lkr"),
		ConfirmMaxAttempts: r.integer("CONFIRM_MAX_ATTEMPTS", 5),
		ConfirmDelay:       r.duration("CONFIRM_DELAY", 2*time.Second),

		MarkerStaleAfter: r.duration("MARKER_STALE_AFTER", 2*time.Minute),

		ReconcileQueueURL: r.str("RECONCILE_QUEUE_URL", ""),
		ReconcileDelay:    r.duration("RECONCILE_DELAY", 10*time.Minute),

		AWSRegion:           r.str("AWS_REGION", "us-east-1"),
		AWSEndpointOverride: r.str("AWS_ENDPOINT_OVERRIDE", ""),
	}
	if err := errors.Join(append(r.errs, cfg.validate()...)...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	switch c.StorageBackend {
	case StorageMemory, StorageBolt, StorageRedis, StorageDynamoDB:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND: unknown backend %q", c.StorageBackend))
	}
	if u, err := url.Parse(c.BackendBaseURL); c.BackendBaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("BACKEND_BASE_URL: must be an absolute URL"))
	}
	if !strings.Contains(c.GatewayRedirectURL, "{session_id}") {
		errs = append(errs, errors.New("GATEWAY_REDIRECT_URL: must contain {session_id}"))
	}
	if c.ConfirmMaxAttempts < 1 {
		errs = append(errs, errors.New("CONFIRM_MAX_ATTEMPTS: must be at least 1"))
	}
	return errs
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) boolean(key string) bool {
	v := r.getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
	}
	return b
}

func (r *reader) integer(key string, def int) int {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
