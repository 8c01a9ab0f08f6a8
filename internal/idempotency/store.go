package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/go-grocery-checkout/internal/kv"
)

const (
	attemptPrefix = "checkout.attempt."
	sessionPrefix = "checkout.session."
)

// Store keeps attempt markers in a kv.Store shared by every client, so a
// paid session can only ever be turned into one order.
type Store struct {
	kv         kv.Store
	staleAfter time.Duration // IN_PROGRESS markers older than this are abandoned
	nowFunc    func() time.Time
}

// NewStore returns a configured Store.
// staleAfter: how long an IN_PROGRESS marker blocks other submissions (e.g. 2*time.Minute).
func NewStore(s kv.Store, staleAfter time.Duration) *Store {
	return &Store{
		kv:         s,
		staleAfter: staleAfter,
		nowFunc:    time.Now,
	}
}

// CreateIfNotExists writes an IN_PROGRESS marker if the key has none.
// Returns (created=true, nil) if successfully created.
// Returns (created=false, nil) if a marker already exists (caller should Get to inspect).
func (s *Store) CreateIfNotExists(ctx context.Context, key, sessionID string) (bool, error) {
	raw, err := s.encode(s.inProgress(key, sessionID))
	if err != nil {
		return false, err
	}
	created, err := s.kv.SetIfAbsent(ctx, attemptPrefix+key, raw)
	if err != nil {
		return false, fmt.Errorf("create marker: %w", err)
	}
	return created, nil
}

// Claim replaces prev, a FAILED or abandoned marker read by Get, with a fresh
// IN_PROGRESS one. It reports false when the marker changed since prev was
// read, meaning another submission claimed it first.
func (s *Store) Claim(ctx context.Context, prev *Record, sessionID string) (bool, error) {
	if prev == nil || prev.raw == nil {
		return false, errors.New("claim marker: previous record was not read from the store")
	}
	raw, err := s.encode(s.inProgress(prev.AttemptKey, sessionID))
	if err != nil {
		return false, err
	}
	claimed, err := s.kv.CompareAndSwap(ctx, attemptPrefix+prev.AttemptKey, prev.raw, raw)
	if err != nil {
		return false, fmt.Errorf("claim marker: %w", err)
	}
	return claimed, nil
}

// Get retrieves the marker for an attempt key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	return s.get(ctx, attemptPrefix+key)
}

// GetBySession retrieves the marker recorded for a gateway session. If not found, returns (nil, nil).
func (s *Store) GetBySession(ctx context.Context, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.get(ctx, sessionPrefix+sessionID)
}

// MarkConfirmed records the created order for the attempt and, when present, the session.
func (s *Store) MarkConfirmed(ctx context.Context, key, sessionID string, orderID int64) error {
	now := s.nowFunc()
	rec := Record{
		AttemptKey: key,
		Status:     StatusConfirmed,
		OrderID:    orderID,
		SessionID:  sessionID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if prev, err := s.Get(ctx, key); err == nil && prev != nil {
		rec.CreatedAt = prev.CreatedAt
	}
	raw, err := s.encode(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, attemptPrefix+key, raw); err != nil {
		return fmt.Errorf("mark confirmed: %w", err)
	}
	if sessionID != "" {
		if err := s.kv.Set(ctx, sessionPrefix+sessionID, raw); err != nil {
			return fmt.Errorf("mark session confirmed: %w", err)
		}
	}
	return nil
}

// MarkFailed marks the attempt FAILED with a note. A confirmed marker is never downgraded.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	rec, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	now := s.nowFunc()
	if rec == nil {
		rec = &Record{AttemptKey: key, CreatedAt: now}
	}
	if rec.Confirmed() {
		return nil
	}
	rec.Status = StatusFailed
	rec.Note = note
	rec.UpdatedAt = now
	raw, err := s.encode(*rec)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, attemptPrefix+key, raw); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// Release removes the attempt marker so that the attempt can be submitted again.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, attemptPrefix+key); err != nil {
		return fmt.Errorf("release marker: %w", err)
	}
	return nil
}

// Abandoned reports whether an IN_PROGRESS marker has outlived the stale window.
func (s *Store) Abandoned(rec *Record) bool {
	return rec != nil && rec.Status == StatusInProgress && s.nowFunc().Sub(rec.UpdatedAt) > s.staleAfter
}

func (s *Store) inProgress(key, sessionID string) Record {
	now := s.nowFunc()
	return Record{
		AttemptKey: key,
		Status:     StatusInProgress,
		SessionID:  sessionID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Store) get(ctx context.Context, storageKey string) (*Record, error) {
	raw, err := s.kv.Get(ctx, storageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get marker: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal marker: %w", err)
	}
	rec.raw = raw
	return &rec, nil
}

func (s *Store) encode(rec Record) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal marker: %w", err)
	}
	return raw, nil
}
