package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/cart"
	"github.com/imrishuroy/go-grocery-checkout/internal/kv"
	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
	"github.com/imrishuroy/go-grocery-checkout/internal/orders"
	"github.com/imrishuroy/go-grocery-checkout/internal/payment"
)

const (
	flowKey          = "checkout.flow"
	lastConfirmedKey = "checkout.last_confirmed"
)

// OrderSubmitter creates at most one order per attempt key.
type OrderSubmitter interface {
	Submit(ctx context.Context, draft orders.Draft, attemptKey, sessionID string) (int64, error)
}

// PaymentSession is the client's gateway session.
type PaymentSession interface {
	CreateAndRedirect(ctx context.Context, draft orders.Draft) (payment.Handoff, error)
	Confirm(ctx context.Context, sessionID string) (payment.Status, error)
	Check(ctx context.Context, sessionID string) (bool, error)
	StoredSessionID(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Deps are the collaborators of a Machine. Store and Cart must be scoped to the client.
type Deps struct {
	Store     kv.Store
	Cart      *cart.Store
	Submitter OrderSubmitter
	Payments  PaymentSession
	// Scheduler is optional; without it abandoned online attempts wait for the user.
	Scheduler ReconcileScheduler
	Metrics   metrics.Recorder
	Log       logrus.FieldLogger
	Now       func() time.Time
	NewKey    func() string
}

// Machine runs one client's checkout. It holds no state between calls.
type Machine struct {
	clientID string
	d        Deps
	log      logrus.FieldLogger
}

func New(clientID string, d Deps) *Machine {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewKey == nil {
		d.NewKey = uuid.NewString
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return &Machine{clientID: clientID, d: d, log: d.Log.WithField("client_id", clientID)}
}

// Start begins a checkout from the live cart, or restores an attempt that is
// still with the gateway.
func (m *Machine) Start(ctx context.Context) (View, error) {
	prev, err := m.load(ctx)
	if err != nil {
		return View{}, err
	}
	if prev != nil && prev.Attempt.InFlight() {
		return prev.view(), nil
	}

	live, err := m.d.Cart.Load(ctx)
	if err != nil {
		return View{}, storageError(err)
	}
	if live.IsEmpty() {
		if prev != nil {
			m.discard(ctx)
		}
		return View{}, emptyCart()
	}

	now := m.d.Now()
	f := &flow{
		State:    CollectingInfo,
		Snapshot: live.Snapshot(now).Finalized(),
		Draft: orders.Draft{
			PaymentMethod: orders.CashOnPickup,
			PickupDate:    now.Format("2006-01-02"),
		},
	}
	if prev != nil {
		f.Draft = prev.Draft
	}
	f.Draft.Items = f.Snapshot.Lines()
	if prev != nil && prev.Attempt != nil && prev.Attempt.Status != AttemptConfirmed {
		if prev.Attempt.Digest == f.Draft.Digest() {
			f.Attempt = prev.Attempt
		} else if prev.Attempt.SessionID != "" {
			// A payment session only ever pays for the draft it was opened with.
			m.log.WithFields(logrus.Fields{"attempt_key": prev.Attempt.Key, "session_id": prev.Attempt.SessionID}).
				Info("cart changed, dropping earlier payment session")
			if err := m.d.Payments.Clear(ctx); err != nil {
				m.log.WithError(err).Error("clear payment session")
			}
		}
	}

	if err := m.d.Store.Delete(ctx, lastConfirmedKey); err != nil {
		return View{}, storageError(err)
	}
	if err := m.save(ctx, f); err != nil {
		return View{}, err
	}
	m.log.WithField("lines", f.Snapshot.Len()).Info("checkout started")
	return f.view(), nil
}

// View returns the current checkout, or the last confirmed order when none is active.
func (m *Machine) View(ctx context.Context) (View, error) {
	f, err := m.load(ctx)
	if err != nil {
		return View{}, err
	}
	if f == nil {
		return m.lastConfirmed(ctx)
	}
	if err := m.guard(ctx, f); err != nil {
		return View{}, err
	}
	return f.view(), nil
}

// UpdateDetails edits the draft. Editing during review returns to CollectingInfo.
func (m *Machine) UpdateDetails(ctx context.Context, det Details) (View, error) {
	f, err := m.active(ctx)
	if err != nil {
		return View{}, err
	}
	if f.State != CollectingInfo && f.State != ReviewingOrder {
		return f.view(), stateError("Your order details can't be changed while payment is in progress.")
	}

	f.Draft.CustomerName = det.CustomerName
	f.Draft.Email = det.Email
	f.Draft.Phone = det.Phone
	f.Draft.Notes = det.Notes
	f.Draft.PickupTime = det.PickupTime
	f.Draft.Username = det.Username
	if det.PaymentMethod != "" {
		f.Draft.PaymentMethod = det.PaymentMethod
	}
	if det.PickupDate != "" {
		f.Draft.PickupDate = det.PickupDate
	}
	f.State = CollectingInfo
	f.Notice = ""
	if err := m.save(ctx, f); err != nil {
		return View{}, err
	}
	return f.view(), nil
}

// Advance validates the customer details and moves to ReviewingOrder. On
// failure nothing is written and the error carries the per-field messages.
func (m *Machine) Advance(ctx context.Context) (View, error) {
	f, err := m.active(ctx)
	if err != nil {
		return View{}, err
	}
	switch f.State {
	case ReviewingOrder:
		return f.view(), nil
	case CollectingInfo:
	default:
		return f.view(), stateError("Payment is already in progress for this order.")
	}

	if errs := validateDraft(f.Draft); len(errs) > 0 {
		return f.view(), apperr.Validation(errs)
	}

	f.State = ReviewingOrder
	f.Notice = ""
	m.ensureAttempt(f)
	if err := m.save(ctx, f); err != nil {
		return View{}, err
	}
	return f.view(), nil
}

// Back returns from review to editing.
func (m *Machine) Back(ctx context.Context) (View, error) {
	f, err := m.active(ctx)
	if err != nil {
		return View{}, err
	}
	switch f.State {
	case CollectingInfo:
		return f.view(), nil
	case ReviewingOrder:
	default:
		return f.view(), stateError("Payment is already in progress for this order.")
	}
	f.State = CollectingInfo
	if err := m.save(ctx, f); err != nil {
		return View{}, err
	}
	return f.view(), nil
}

// Submit places the reviewed order. Cash orders are created right away;
// online orders return a RedirectURL to the gateway.
func (m *Machine) Submit(ctx context.Context) (View, error) {
	f, err := m.load(ctx)
	if err != nil {
		return View{}, err
	}
	if f == nil {
		// Submitted again after the order was placed.
		return m.lastConfirmed(ctx)
	}
	if err := m.guard(ctx, f); err != nil {
		return View{}, err
	}
	if f.State != ReviewingOrder {
		return f.view(), stateError("Review your order before placing it.")
	}
	if errs := validateDraft(f.Draft); len(errs) > 0 {
		return f.view(), apperr.Validation(errs)
	}
	att := m.ensureAttempt(f)
	log := m.log.WithFields(logrus.Fields{"attempt_key": att.Key, "payment_method": f.Draft.PaymentMethod})

	if f.Draft.PaymentMethod == orders.Online {
		return m.submitOnline(ctx, f, log)
	}

	m.setAttempt(f, AttemptSubmitting)
	if err := m.save(ctx, f); err != nil {
		return View{}, err
	}
	orderID, err := m.d.Submitter.Submit(ctx, f.Draft, att.Key, "")
	if err != nil {
		return m.submitFailed(ctx, f, log, err)
	}
	return m.finish(ctx, f, orderID)
}

func (m *Machine) submitOnline(ctx context.Context, f *flow, log logrus.FieldLogger) (View, error) {
	att := f.Attempt

	// A session from an earlier try of this attempt may have been paid after all.
	if sessionID := m.sessionOf(ctx, att); sessionID != "" {
		paid, err := m.d.Payments.Check(ctx, sessionID)
		if err != nil {
			return f.view(), err
		}
		if paid {
			log.WithField("session_id", sessionID).Info("earlier payment session already paid")
			return m.completePaid(ctx, f, sessionID)
		}
	}

	// The draft and snapshot must be durable before the browser leaves.
	att.SessionID = ""
	m.setAttempt(f, AttemptAwaitingPayment)
	if err := m.save(ctx, f); err != nil {
		return View{}, err
	}

	h, err := m.d.Payments.CreateAndRedirect(ctx, f.Draft)
	if err != nil {
		return m.submitFailed(ctx, f, log, err)
	}

	att.SessionID = h.SessionID
	f.State = AwaitingPayment
	f.Notice = ""
	if err := m.save(ctx, f); err != nil {
		return View{}, err
	}
	m.scheduleReconcile(ctx, att, log)

	v := f.view()
	v.RedirectURL = h.RedirectURL
	return v, nil
}

// ResumeFromRedirect handles the browser landing back from the gateway with
// payment=success or payment=cancel. Without an indicator it behaves like View.
func (m *Machine) ResumeFromRedirect(ctx context.Context, query url.Values) (View, error) {
	indicator := query.Get("payment")
	f, err := m.load(ctx)
	if err != nil {
		return View{}, err
	}
	if f == nil {
		// Back/forward through the gateway after the order was placed.
		return m.lastConfirmed(ctx)
	}
	log := m.log.WithField("payment", indicator)

	switch indicator {
	case "cancel":
		if f.State == AwaitingPayment {
			f.State = ReviewingOrder
		}
		if f.Attempt != nil && f.Attempt.Status == AttemptAwaitingPayment {
			m.setAttempt(f, AttemptDrafting)
		}
		f.Notice = "Payment was cancelled. Your order has not been placed; you can try again."
		if err := m.save(ctx, f); err != nil {
			return View{}, err
		}
		m.d.Metrics.Record(ctx, metrics.EventPaymentCancelled)
		log.Info("payment cancelled at gateway")
		return f.view(), nil

	case "success":
		sessionID := m.sessionOf(ctx, f.Attempt)
		if f.Attempt == nil || sessionID == "" {
			return f.view(), stateError("We couldn't find a payment for this checkout.")
		}
		if f.State == CollectingInfo {
			return f.view(), stateError("Review your order before placing it.")
		}
		log = log.WithFields(logrus.Fields{"attempt_key": f.Attempt.Key, "session_id": sessionID})
		if _, err := m.d.Payments.Confirm(ctx, sessionID); err != nil {
			f.State = ReviewingOrder
			f.Notice = apperr.As(err).Message
			m.setAttempt(f, AttemptFailed)
			if saveErr := m.save(ctx, f); saveErr != nil {
				log.WithError(saveErr).Error("persist checkout after failed confirmation")
			}
			return f.view(), err
		}
		return m.completePaid(ctx, f, sessionID)

	default:
		if err := m.guard(ctx, f); err != nil {
			return View{}, err
		}
		return f.view(), nil
	}
}

// completePaid turns a paid session into the order. The draft must be the
// one the session was opened for.
func (m *Machine) completePaid(ctx context.Context, f *flow, sessionID string) (View, error) {
	att := f.Attempt
	if !att.Covers(f.Draft) {
		m.log.WithFields(logrus.Fields{"attempt_key": att.Key, "session_id": sessionID}).
			Warn("paid session does not match the current order, not placing it")
		return f.view(), stateError("Your order changed after payment started. Review it and place it again.")
	}
	att.SessionID = sessionID
	m.setAttempt(f, AttemptSubmitting)
	if err := m.save(ctx, f); err != nil {
		return View{}, err
	}
	orderID, err := m.d.Submitter.Submit(ctx, f.Draft, att.Key, sessionID)
	if err != nil {
		return m.submitFailed(ctx, f, m.log.WithField("attempt_key", att.Key), err)
	}
	return m.finish(ctx, f, orderID)
}

// submitFailed leaves the flow in ReviewingOrder so the user can retry. An
// in-flight error means another request owns the attempt and the flow is left alone.
func (m *Machine) submitFailed(ctx context.Context, f *flow, log logrus.FieldLogger, err error) (View, error) {
	ae := apperr.As(err)
	if ae.Kind == apperr.KindInFlight {
		return f.view(), ae
	}
	f.State = ReviewingOrder
	f.Notice = ae.Message
	m.setAttempt(f, AttemptFailed)
	if saveErr := m.save(ctx, f); saveErr != nil {
		log.WithError(saveErr).Error("persist failed attempt")
	}
	log.WithError(err).WithField("kind", ae.Kind).Warn("checkout submission failed")
	return f.view(), ae
}

// finish records the confirmation and clears the cart and all checkout state.
func (m *Machine) finish(ctx context.Context, f *flow, orderID int64) (View, error) {
	att := f.Attempt
	att.OrderID = orderID
	m.setAttempt(f, AttemptConfirmed)
	total := displayTotal(f.Draft.Total())
	log := m.log.WithFields(logrus.Fields{"attempt_key": att.Key, "order_id": orderID})

	conf := confirmation{OrderID: orderID, AttemptKey: att.Key, Total: total, ConfirmedAt: m.d.Now()}
	if err := kv.PutJSON(ctx, m.d.Store, lastConfirmedKey, conf); err != nil {
		log.WithError(err).Error("persist confirmation")
	}
	if err := m.d.Cart.Clear(ctx); err != nil {
		log.WithError(err).Error("clear cart after order")
	}
	m.discard(ctx)
	log.Info("checkout confirmed")

	draft := f.Draft
	return View{
		State:         Confirmed,
		Draft:         &draft,
		Total:         total,
		AttemptStatus: AttemptConfirmed,
		OrderID:       orderID,
	}, nil
}

func (m *Machine) lastConfirmed(ctx context.Context) (View, error) {
	var conf confirmation
	found, err := kv.GetJSON(ctx, m.d.Store, lastConfirmedKey, &conf)
	if err != nil {
		return View{}, storageError(err)
	}
	if !found {
		return View{}, stateError("There is no checkout in progress.")
	}
	return View{State: Confirmed, Total: conf.Total, AttemptStatus: AttemptConfirmed, OrderID: conf.OrderID}, nil
}

// active loads the flow and applies the empty-cart guard.
func (m *Machine) active(ctx context.Context) (*flow, error) {
	f, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, stateError("There is no checkout in progress.")
	}
	if err := m.guard(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// guard discards the flow when the live cart was emptied elsewhere and no
// attempt is in flight.
func (m *Machine) guard(ctx context.Context, f *flow) error {
	if f.Attempt.InFlight() {
		return nil
	}
	live, err := m.d.Cart.Load(ctx)
	if err != nil {
		return storageError(err)
	}
	if !live.IsEmpty() {
		return nil
	}
	m.log.Info("cart emptied mid-checkout, discarding flow")
	m.discard(ctx)
	return emptyCart()
}

// ensureAttempt keeps the current attempt when the draft content is unchanged
// and not yet ordered; otherwise it replaces it with a new one.
func (m *Machine) ensureAttempt(f *flow) *Attempt {
	digest := f.Draft.Digest()
	if a := f.Attempt; a != nil && a.Digest == digest && a.Status != AttemptConfirmed {
		return a
	}
	f.Attempt = &Attempt{Key: m.d.NewKey(), Digest: digest, Status: AttemptDrafting, UpdatedAt: m.d.Now()}
	return f.Attempt
}

func (m *Machine) setAttempt(f *flow, st AttemptStatus) {
	f.Attempt.Status = st
	f.Attempt.UpdatedAt = m.d.Now()
}

// sessionOf returns the attempt's session, falling back to the id persisted
// by the payment session in case the flow was not saved after the handoff.
func (m *Machine) sessionOf(ctx context.Context, att *Attempt) string {
	if att == nil {
		return ""
	}
	if att.SessionID != "" {
		return att.SessionID
	}
	if att.Status != AttemptAwaitingPayment {
		return ""
	}
	id, err := m.d.Payments.StoredSessionID(ctx)
	if err != nil {
		m.log.WithError(err).Warn("read stored payment session")
		return ""
	}
	return id
}

func (m *Machine) load(ctx context.Context) (*flow, error) {
	var f flow
	found, err := kv.GetJSON(ctx, m.d.Store, flowKey, &f)
	if err != nil {
		return nil, storageError(err)
	}
	if !found {
		return nil, nil
	}
	// Items are never trusted from the draft record.
	f.Draft.Items = f.Snapshot.Lines()
	return &f, nil
}

func (m *Machine) save(ctx context.Context, f *flow) error {
	f.UpdatedAt = m.d.Now()
	if err := kv.PutJSON(ctx, m.d.Store, flowKey, f); err != nil {
		return storageError(err)
	}
	return nil
}

func (m *Machine) discard(ctx context.Context) {
	if err := m.d.Store.Delete(ctx, flowKey); err != nil {
		m.log.WithError(err).Error("delete checkout flow")
	}
	if err := m.d.Payments.Clear(ctx); err != nil {
		m.log.WithError(err).Error("clear payment session")
	}
}

func validateDraft(d orders.Draft) map[string]string {
	errs := d.ValidateCustomerInfo()
	if d.PaymentMethod != orders.CashOnPickup && d.PaymentMethod != orders.Online {
		errs["paymentMethod"] = "Choose how you want to pay."
	}
	if _, err := time.Parse("2006-01-02", d.PickupDate); err != nil {
		errs["pickupDate"] = "Choose a pickup date."
	}
	return errs
}

func stateError(msg string) *apperr.Error {
	return apperr.New(apperr.KindState, msg)
}

func emptyCart() *apperr.Error {
	return apperr.New(apperr.KindEmptyCart, "Your cart is empty.")
}

func storageError(err error) *apperr.Error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Wrap(apperr.KindInternal, "We couldn't load your checkout. Please try again.", fmt.Errorf("checkout storage: %w", err))
}
