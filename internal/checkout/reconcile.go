package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
)

// ReconcileRequest asks the worker to check whether an abandoned online
// attempt was paid and, if so, to create its order.
type ReconcileRequest struct {
	ClientID   string `json:"client_id"`
	AttemptKey string `json:"attempt_key"`
	SessionID  string `json:"session_id"`
}

// ReconcileScheduler queues a ReconcileRequest for later.
type ReconcileScheduler interface {
	ScheduleReconcile(ctx context.Context, req ReconcileRequest) error
}

// MessageSender is satisfied by aws.Publisher.
type MessageSender interface {
	Send(ctx context.Context, body string, delay time.Duration, attributes map[string]string) error
}

// QueueScheduler sends reconcile requests as delayed queue messages.
type QueueScheduler struct {
	Sender MessageSender
	Delay  time.Duration
}

func (q *QueueScheduler) ScheduleReconcile(ctx context.Context, req ReconcileRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal reconcile request: %w", err)
	}
	return q.Sender.Send(ctx, string(body), q.Delay, map[string]string{
		"attempt_key": req.AttemptKey,
	})
}

func (m *Machine) scheduleReconcile(ctx context.Context, att *Attempt, log logrus.FieldLogger) {
	if m.d.Scheduler == nil {
		return
	}
	req := ReconcileRequest{ClientID: m.clientID, AttemptKey: att.Key, SessionID: att.SessionID}
	if err := m.d.Scheduler.ScheduleReconcile(ctx, req); err != nil {
		log.WithError(err).Warn("schedule payment reconciliation")
	}
}

// Reconcile finishes an online attempt whose payment succeeded but whose
// browser never came back. It returns the order id, or 0 when there was
// nothing to do. Errors are meant to be retried.
func (m *Machine) Reconcile(ctx context.Context, attemptKey string) (int64, error) {
	log := m.log.WithField("attempt_key", attemptKey)
	f, err := m.load(ctx)
	if err != nil {
		return 0, err
	}
	if f == nil || f.Attempt == nil || f.Attempt.Key != attemptKey {
		log.Debug("nothing to reconcile")
		return 0, nil
	}
	if f.Attempt.Status == AttemptConfirmed {
		return f.Attempt.OrderID, nil
	}
	if !f.Attempt.Covers(f.Draft) {
		log.Warn("checkout changed since the attempt was opened, nothing to reconcile")
		return 0, nil
	}
	sessionID := m.sessionOf(ctx, f.Attempt)
	if sessionID == "" {
		log.Debug("attempt has no payment session")
		return 0, nil
	}

	paid, err := m.d.Payments.Check(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if !paid {
		log.WithField("session_id", sessionID).Info("payment session not paid, nothing to reconcile")
		return 0, nil
	}

	v, err := m.completePaid(ctx, f, sessionID)
	if err != nil {
		return 0, err
	}
	m.d.Metrics.Record(ctx, metrics.EventReconciled)
	log.WithFields(logrus.Fields{"session_id": sessionID, "order_id": v.OrderID}).Info("reconciled paid payment session")
	return v.OrderID, nil
}
