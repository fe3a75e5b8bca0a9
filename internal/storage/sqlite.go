package storage

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend is a SQLite storage backend: one row per scope key.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend creates a new SQLite storage backend.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteBackend{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// init creates the necessary tables.
func (s *SQLiteBackend) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scopes (
			key TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);
	`)
	return err
}

// Load retrieves a scope's payload from SQLite.
func (s *SQLiteBackend) Load(key string) ([]byte, bool, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM scopes WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(data), true, nil
}

// Save persists a scope's payload to SQLite.
func (s *SQLiteBackend) Save(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO scopes (key, data) VALUES (?, ?)
	`, key, string(data))
	return err
}

// Delete removes a scope's payload.
func (s *SQLiteBackend) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM scopes WHERE key = ?", key)
	return err
}

// Keys lists all stored scope keys.
func (s *SQLiteBackend) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM scopes ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the storage backend.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
