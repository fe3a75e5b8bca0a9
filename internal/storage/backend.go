// Package storage implements the persistence gateway: scope-keyed blob
// backends that scope managers write full store payloads through.
package storage

import "fmt"

// Backend is the load/save contract consumed by scope managers. Keys are
// scope identities ("global" or a character-derived key); payloads are the
// full serialized store for that scope, never a partial write.
type Backend interface {
	// Load retrieves a scope's payload. An absent key is (nil, false, nil),
	// not an error.
	Load(key string) ([]byte, bool, error)

	// Save persists a scope's full payload, replacing any prior one.
	Save(key string, data []byte) error

	// Delete removes a scope's payload. Deleting an absent key is a no-op.
	Delete(key string) error

	// Keys lists all stored scope keys.
	Keys() ([]string, error)

	// Close releases backend resources.
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Type string // "memory", "sqlite", "postgres", "bolt"
	Path string // file path for sqlite/bolt
	URL  string // connection string for postgres
}

// Open creates the backend described by cfg.
func Open(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "sqlite":
		return NewSQLiteBackend(cfg.Path)
	case "postgres", "postgresql":
		return NewPostgresBackend(cfg.URL)
	case "bolt":
		return NewBoltBackend(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
