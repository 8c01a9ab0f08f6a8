package kv

import (
	"bytes"
	"context"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
)

const boltBucket = "checkout"

// Bolt stores entries in a single-file BoltDB database.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database at path and ensures the bucket exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Close releases the database file lock.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (b *Bolt) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), value)
	})
}

func (b *Bolt) SetIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	created := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(boltBucket))
		if bk.Get([]byte(key)) != nil {
			return nil
		}
		created = true
		return bk.Put([]byte(key), value)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// CompareAndSwap compares and writes inside one update transaction.
func (b *Bolt) CompareAndSwap(_ context.Context, key string, old, value []byte) (bool, error) {
	swapped := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(boltBucket))
		cur := bk.Get([]byte(key))
		if cur == nil || !bytes.Equal(cur, old) {
			return nil
		}
		swapped = true
		return bk.Put([]byte(key), value)
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (b *Bolt) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(key))
	})
}
