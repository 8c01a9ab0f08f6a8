package idempotency

import "time"

// Status values for attempt markers
const (
	StatusInProgress = "IN_PROGRESS"
	StatusConfirmed  = "CONFIRMED"
	StatusFailed     = "FAILED"
)

// Record is the marker persisted for one checkout attempt. A confirmed
// online attempt is also stored under its gateway session id.
type Record struct {
	AttemptKey string    `json:"attempt_key"`
	Status     string    `json:"status"`
	OrderID    int64     `json:"order_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Note       string    `json:"note,omitempty"`

	raw []byte // stored bytes, the expected value for Claim
}

func (r *Record) Confirmed() bool { return r != nil && r.Status == StatusConfirmed }
