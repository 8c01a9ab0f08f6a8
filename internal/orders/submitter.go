package orders

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/idempotency"
	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
)

// Creator creates a backend order.
type Creator interface {
	CreateOrder(ctx context.Context, req CreateRequest, attemptKey string) (int64, error)
}

// Submitter creates at most one backend order per attempt key and per
// gateway session.
type Submitter struct {
	creator Creator
	markers *idempotency.Store
	metrics metrics.Recorder
	log     logrus.FieldLogger
}

func NewSubmitter(creator Creator, markers *idempotency.Store, rec metrics.Recorder, log logrus.FieldLogger) *Submitter {
	return &Submitter{creator: creator, markers: markers, metrics: rec, log: log}
}

// Submit creates the order for draft, or returns the order already created
// for attemptKey or sessionID. sessionID is empty for cash-on-pickup.
//
// A rejected order leaves no marker behind so the corrected draft can be
// submitted again. A failed call marks the attempt FAILED; only the user retries it.
func (s *Submitter) Submit(ctx context.Context, draft Draft, attemptKey, sessionID string) (int64, error) {
	if attemptKey == "" {
		return 0, apperr.New(apperr.KindInternal, "Missing checkout attempt.")
	}
	if !draft.Total().IsPositive() {
		return 0, apperr.New(apperr.KindValidation, "Your order total is zero. Add items to your cart before checking out.")
	}

	log := s.log.WithFields(logrus.Fields{"attempt_key": attemptKey, "session_id": sessionID})

	bySession, err := s.markers.GetBySession(ctx, sessionID)
	if err != nil {
		return 0, storageError(err)
	}
	if bySession.Confirmed() {
		return s.absorb(ctx, log, bySession), nil
	}

	rec, err := s.markers.Get(ctx, attemptKey)
	if err != nil {
		return 0, storageError(err)
	}
	switch {
	case rec.Confirmed():
		return s.absorb(ctx, log, rec), nil

	case rec == nil:
		created, err := s.markers.CreateIfNotExists(ctx, attemptKey, sessionID)
		if err != nil {
			return 0, storageError(err)
		}
		if !created {
			return s.lostRace(ctx, log, attemptKey)
		}

	case rec.Status == idempotency.StatusInProgress && !s.markers.Abandoned(rec):
		log.Info("submission already in flight")
		return 0, inFlight()

	default:
		log.WithField("previous_status", rec.Status).Info("reclaiming attempt")
		claimed, err := s.markers.Claim(ctx, rec, sessionID)
		if err != nil {
			return 0, storageError(err)
		}
		if !claimed {
			return s.lostRace(ctx, log, attemptKey)
		}
	}

	orderID, err := s.creator.CreateOrder(ctx, draft.Request(), attemptKey)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindValidation, apperr.KindStock:
			if relErr := s.markers.Release(ctx, attemptKey); relErr != nil {
				log.WithError(relErr).Error("release marker after rejection failed")
			}
			s.metrics.Record(ctx, metrics.EventSubmissionRejected)
			log.WithError(err).Warn("order rejected by backend")
		default:
			if mfErr := s.markers.MarkFailed(ctx, attemptKey, err.Error()); mfErr != nil {
				log.WithError(mfErr).Error("mark attempt failed")
			}
			s.metrics.Record(ctx, metrics.EventSubmissionFailed)
			log.WithError(err).Warn("order submission failed")
		}
		return 0, err
	}

	if err := s.markers.MarkConfirmed(ctx, attemptKey, sessionID, orderID); err != nil {
		// The order exists; the backend's Idempotency-Key still guards a retry.
		log.WithError(err).WithField("order_id", orderID).Error("order created but marker write failed")
	}
	s.metrics.Record(ctx, metrics.EventOrderCreated)
	log.WithField("order_id", orderID).Info("order created")
	return orderID, nil
}

// lostRace handles a marker that a concurrent submission wrote first.
func (s *Submitter) lostRace(ctx context.Context, log logrus.FieldLogger, attemptKey string) (int64, error) {
	rec, err := s.markers.Get(ctx, attemptKey)
	if err != nil {
		return 0, storageError(err)
	}
	if rec.Confirmed() {
		return s.absorb(ctx, log, rec), nil
	}
	log.Info("submission already in flight")
	return 0, inFlight()
}

func (s *Submitter) absorb(ctx context.Context, log logrus.FieldLogger, rec *idempotency.Record) int64 {
	s.metrics.Record(ctx, metrics.EventDuplicateAbsorbed)
	log.WithField("order_id", rec.OrderID).Info("duplicate submission absorbed")
	return rec.OrderID
}

func inFlight() *apperr.Error {
	return apperr.New(apperr.KindInFlight, "Your order is already being placed. Please wait a moment.")
}

func storageError(err error) *apperr.Error {
	return apperr.Wrap(apperr.KindInternal, "We couldn't save your checkout progress. Please try again.", err)
}
