package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/kv"
	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
	"github.com/imrishuroy/go-grocery-checkout/internal/orders"
)

// SessionKey is where the current gateway session id is kept in client storage.
const SessionKey = "checkout.payment_session_id"

// MinAmount is the smallest charge the gateway accepts, exclusive, in minor units.
const MinAmount = 50

// ErrConfirmTimeout means every status poll ran without the session reporting paid.
var ErrConfirmTimeout = errors.New("payment confirmation timed out")

// Config controls session creation and confirmation polling.
type Config struct {
	Currency    string
	MaxAttempts int
	Delay       time.Duration
}

// Handoff is what the browser needs to go to the gateway.
type Handoff struct {
	SessionID   string
	RedirectURL string
}

// Session wraps one client's interaction with the gateway.
type Session struct {
	gateway    Gateway
	redirector Redirector
	store      kv.Store
	cfg        Config
	metrics    metrics.Recorder
	log        logrus.FieldLogger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewSession expects a client-scoped store.
func NewSession(g Gateway, r Redirector, store kv.Store, cfg Config, rec metrics.Recorder, log logrus.FieldLogger) *Session {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "lkr"
	}
	return &Session{
		gateway:    g,
		redirector: r,
		store:      store,
		cfg:        cfg,
		metrics:    rec,
		log:        log,
		sleep:      sleepCtx,
	}
}

// AmountMinor converts an amount to the gateway's smallest currency unit.
func AmountMinor(total decimal.Decimal) int64 {
	return total.Shift(2).Round(0).IntPart()
}

// CreateAndRedirect mints a session for draft's total, persists the session
// id and only then builds the redirect. No redirect is returned on any failure.
func (s *Session) CreateAndRedirect(ctx context.Context, draft orders.Draft) (Handoff, error) {
	total := draft.Total()
	amount := AmountMinor(total)
	if amount <= MinAmount {
		return Handoff{}, apperr.New(apperr.KindValidation, "This order is too small to pay online. Choose cash on pickup instead.")
	}

	wire := draft.Request()
	sessionID, err := s.gateway.CreateSession(ctx, CreateSessionRequest{
		Amount:        amount,
		Currency:      s.cfg.Currency,
		CustomerName:  wire.CustomerName,
		Email:         wire.Email,
		Phone:         wire.Phone,
		PickupDate:    wire.PickupDate,
		PickupTime:    wire.PickupTime,
		PaymentMethod: wire.PaymentMethod,
		Notes:         wire.Notes,
		Items:         wire.Items,
		TotalAmount:   wire.TotalAmount,
		Username:      wire.Username,
	})
	if err != nil {
		s.log.WithError(err).Warn("payment session creation failed")
		return Handoff{}, apperr.Wrap(apperr.KindGateway, "We couldn't start the payment. Please try again.", err)
	}
	log := s.log.WithField("session_id", sessionID)

	if err := s.store.Set(ctx, SessionKey, []byte(sessionID)); err != nil {
		return Handoff{}, apperr.Wrap(apperr.KindGateway, "We couldn't start the payment. Please try again.", fmt.Errorf("persist session id: %w", err))
	}

	redirect, err := s.redirector.RedirectURL(sessionID)
	if err != nil {
		if clrErr := s.store.Delete(ctx, SessionKey); clrErr != nil {
			log.WithError(clrErr).Error("clear session id after failed handoff")
		}
		log.WithError(err).Warn("payment handoff failed")
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return Handoff{}, ae
		}
		return Handoff{}, apperr.Wrap(apperr.KindGateway, "We couldn't open the payment page. Please try again.", err)
	}

	s.metrics.Record(ctx, metrics.EventPaymentSessionCreated)
	log.WithField("amount", amount).Info("payment session created")
	return Handoff{SessionID: sessionID, RedirectURL: redirect}, nil
}

// Confirm polls the session status up to MaxAttempts times, Delay apart, and
// succeeds only once the session is paid. Individual poll errors are retried.
func (s *Session) Confirm(ctx context.Context, sessionID string) (Status, error) {
	log := s.log.WithField("session_id", sessionID)
	var last Status
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		st, err := s.gateway.SessionStatus(ctx, sessionID)
		switch {
		case err != nil:
			log.WithError(err).WithField("attempt", attempt).Warn("payment status check failed")
		case st.Paid():
			s.metrics.Record(ctx, metrics.EventPaymentConfirmed)
			log.WithField("attempt", attempt).Info("payment confirmed")
			return st, nil
		default:
			last = st
			log.WithFields(logrus.Fields{
				"attempt":        attempt,
				"status":         st.Status,
				"payment_status": st.PaymentStatus,
			}).Debug("payment not yet confirmed")
		}

		if attempt < s.cfg.MaxAttempts {
			if err := s.sleep(ctx, s.cfg.Delay); err != nil {
				return last, apperr.Wrap(apperr.KindGateway, "Payment confirmation was interrupted. Please try again.", err)
			}
		}
	}

	s.metrics.Record(ctx, metrics.EventPaymentConfirmTimeout)
	log.Warn("payment confirmation timed out")
	return last, apperr.Wrap(apperr.KindGateway, "We couldn't confirm your payment yet. Please try again in a moment.", ErrConfirmTimeout)
}

// Check asks for the session status once.
func (s *Session) Check(ctx context.Context, sessionID string) (bool, error) {
	st, err := s.gateway.SessionStatus(ctx, sessionID)
	if err != nil {
		return false, apperr.Wrap(apperr.KindGateway, "We couldn't check your payment. Please try again.", err)
	}
	return st.Paid(), nil
}

// StoredSessionID returns the persisted session id, or "" when there is none.
func (s *Session) StoredSessionID(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx, SessionKey)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session id: %w", err)
	}
	return string(raw), nil
}

// Clear forgets the persisted session id.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, SessionKey)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

