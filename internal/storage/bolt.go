package storage

import (
	"fmt"

	bbolt "go.etcd.io/bbolt"
)

var bucketScopes = []byte("scopes")

// BoltBackend is a bbolt storage backend: a single bucket keyed by scope.
type BoltBackend struct {
	db *bbolt.DB
}

// NewBoltBackend opens or creates a bbolt database file.
func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketScopes)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

// Load retrieves a scope's payload.
func (b *BoltBackend) Load(key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketScopes).Get([]byte(key))
		if data != nil {
			out = make([]byte, len(data))
			copy(out, data)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Save persists a scope's payload (write-through).
func (b *BoltBackend) Save(key string, data []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketScopes).Put([]byte(key), data)
	})
}

// Delete removes a scope's payload.
func (b *BoltBackend) Delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketScopes).Delete([]byte(key))
	})
}

// Keys lists all stored scope keys.
func (b *BoltBackend) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketScopes).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Close closes the underlying bbolt database.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}
