package checkout

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/cart"
	"github.com/imrishuroy/go-grocery-checkout/internal/kv"
	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
	"github.com/imrishuroy/go-grocery-checkout/internal/payment"
)

// Env holds the process-wide collaborators and builds per-client machines.
type Env struct {
	// Store is shared by all clients; each machine gets its own namespace in it.
	Store      kv.Store
	Submitter  OrderSubmitter
	Gateway    payment.Gateway
	Redirector payment.Redirector
	Payment    payment.Config
	Scheduler  ReconcileScheduler
	Metrics    metrics.Recorder
	Log        logrus.FieldLogger
	Now        func() time.Time
}

// ClientStore returns the storage namespace of one client.
func (e *Env) ClientStore(clientID string) kv.Store {
	return kv.Namespace(e.Store, kv.ClientPrefix(clientID))
}

// Cart returns the cart store of one client.
func (e *Env) Cart(clientID string) *cart.Store {
	return cart.NewStore(e.ClientStore(clientID))
}

// ForClient builds the checkout machine of one client.
func (e *Env) ForClient(clientID string) *Machine {
	store := e.ClientStore(clientID)
	log := e.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	rec := e.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return New(clientID, Deps{
		Store:     store,
		Cart:      cart.NewStore(store),
		Submitter: e.Submitter,
		Payments:  payment.NewSession(e.Gateway, e.Redirector, store, e.Payment, rec, log.WithField("client_id", clientID)),
		Scheduler: e.Scheduler,
		Metrics:   rec,
		Log:       log,
		Now:       e.Now,
	})
}
