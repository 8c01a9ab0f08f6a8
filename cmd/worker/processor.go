package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/checkout"
)

// Reconciler finishes a paid attempt for one client.
type Reconciler interface {
	Reconcile(ctx context.Context, attemptKey string) (int64, error)
}

// Processor turns reconcile messages into orders for payments whose shopper never came back.
type Processor struct {
	forClient func(clientID string) Reconciler
	log       logrus.FieldLogger
}

// NewProcessor builds reconcilers from env.
func NewProcessor(env *checkout.Env, log logrus.FieldLogger) *Processor {
	return &Processor{
		forClient: func(clientID string) Reconciler { return env.ForClient(clientID) },
		log:       log,
	}
}

// Handle processes a batch and reports the messages that must be redelivered.
// Malformed messages are dropped; they would fail the same way on every retry.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		err := p.processMessage(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, errMalformed):
			p.log.WithError(err).WithField("message_id", rec.MessageId).Error("dropping malformed reconcile message")
		default:
			p.log.WithError(err).WithField("message_id", rec.MessageId).Warn("reconcile failed, will retry")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

var errMalformed = errors.New("malformed reconcile message")

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg ReconcileMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if msg.ClientID == "" || msg.AttemptKey == "" {
		return fmt.Errorf("%w: missing client_id or attempt_key", errMalformed)
	}

	log := p.log.WithFields(logrus.Fields{
		"client_id":   msg.ClientID,
		"attempt_key": msg.AttemptKey,
		"session_id":  msg.SessionID,
	})
	log.Info("reconciling payment attempt")

	orderID, err := p.forClient(msg.ClientID).Reconcile(ctx, msg.AttemptKey)
	if err != nil {
		return fmt.Errorf("reconcile attempt %s: %w", msg.AttemptKey, err)
	}
	if orderID != 0 {
		log.WithField("order_id", orderID).Info("attempt reconciled")
	}
	return nil
}
