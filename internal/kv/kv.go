// Package kv is the durable key-value substrate that checkout state lives in.
// Entries outlive a single HTTP request and process restarts, which lets a
// checkout resume after the browser comes back from the payment gateway.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is implemented by every storage backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetIfAbsent writes value only when key has no value and reports whether it wrote.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
	// CompareAndSwap replaces the value at key with value only while it still
	// equals old, and reports whether it wrote.
	CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type namespaced struct {
	prefix string
	inner  Store
}

// Namespace scopes every key of s under prefix.
func Namespace(s Store, prefix string) Store {
	return &namespaced{prefix: prefix, inner: s}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	return n.inner.SetIfAbsent(ctx, n.prefix+key, value)
}

func (n *namespaced) CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	return n.inner.CompareAndSwap(ctx, n.prefix+key, old, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

// ClientPrefix is the namespace prefix for one browser session.
func ClientPrefix(clientID string) string {
	return "client:" + clientID + ":"
}

// GetJSON decodes the value at key into out. It reports false when the key is missing.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it at key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
