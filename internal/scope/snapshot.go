package scope

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/narratek/storyvars/internal/vars"
)

// Snapshot is a deep, self-contained copy of every currently-cached scope's
// store, suitable for opaque storage and later exact restoration.
type Snapshot struct {
	ID         string                 `json:"id"`
	ExportedAt time.Time              `json:"exportedAt"`
	Global     *vars.Store            `json:"global"`
	Characters map[string]*vars.Store `json:"characters"`
}

// ExportSnapshot deep-copies the global store and every cached character
// store. Scopes that were never accessed are not included.
func (r *Registry) ExportSnapshot() *Snapshot {
	snap := &Snapshot{
		ID:         uuid.NewString(),
		ExportedAt: time.Now().UTC(),
		Global:     vars.NewStore(),
		Characters: make(map[string]*vars.Store),
	}

	for _, m := range r.cached() {
		release := r.locks.Acquire(m.scope.LockName())
		clone := m.store.Clone()
		release()

		if m.scope.IsGlobal() {
			snap.Global = clone
		} else {
			snap.Characters[m.scope.ID()] = clone
		}
	}
	return snap
}

// ImportSnapshot replaces the in-memory store of every scope present in the
// snapshot and re-persists each one. It does not merge with pre-existing
// state.
func (r *Registry) ImportSnapshot(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("import snapshot: nil snapshot")
	}

	if snap.Global != nil {
		if err := r.ensure(Global()).Init(snap.Global); err != nil {
			return err
		}
	}
	for id, store := range snap.Characters {
		if store == nil {
			continue
		}
		if err := r.ensure(Character(id)).Init(store); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes a snapshot for archival.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot deserializes an archived snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Characters == nil {
		s.Characters = make(map[string]*vars.Store)
	}
	return s, nil
}

// ScopeFromKey parses a persistence key back into a scope. Unknown key
// shapes are reported as an error.
func ScopeFromKey(key string) (Scope, error) {
	if key == "global" {
		return Global(), nil
	}
	if id, ok := strings.CutPrefix(key, "char:"); ok && id != "" {
		return Character(id), nil
	}
	return Scope{}, fmt.Errorf("unrecognized scope key %q", key)
}
