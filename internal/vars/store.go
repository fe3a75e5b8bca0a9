package vars

import (
	"encoding/json"
	"fmt"
)

// Store holds every variable, table, and hidden variable for one scope.
// A Store has no internal locking: it is exclusively owned by its scope
// manager and mutated only inside that scope's lock region.
type Store struct {
	Variables map[string]*Variable       `json:"variables"`
	Tables    map[string]*Table          `json:"tables"`
	Hidden    map[string]*HiddenVariable `json:"hiddenVariables"`
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		Variables: make(map[string]*Variable),
		Tables:    make(map[string]*Table),
		Hidden:    make(map[string]*HiddenVariable),
	}
}

// Variable returns the named variable.
func (s *Store) Variable(name string) (*Variable, bool) {
	v, ok := s.Variables[name]
	return v, ok
}

// Table returns the named table.
func (s *Store) Table(name string) (*Table, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// HiddenVariable returns the named hidden variable.
func (s *Store) HiddenVariable(name string) (*HiddenVariable, bool) {
	h, ok := s.Hidden[name]
	return h, ok
}

// SetVariable registers or overwrites a variable.
func (s *Store) SetVariable(name string, v *Variable) {
	s.Variables[name] = v
}

// RemoveVariable deletes a variable. Removing an absent name is a no-op.
func (s *Store) RemoveVariable(name string) bool {
	if _, ok := s.Variables[name]; !ok {
		return false
	}
	delete(s.Variables, name)
	return true
}

// SetTable registers or overwrites a table.
func (s *Store) SetTable(t *Table) {
	s.Tables[t.Name] = t
}

// RemoveTable deletes a table. Removing an absent name is a no-op.
func (s *Store) RemoveTable(name string) bool {
	if _, ok := s.Tables[name]; !ok {
		return false
	}
	delete(s.Tables, name)
	return true
}

// SetHidden registers or overwrites a hidden variable.
func (s *Store) SetHidden(name string, h *HiddenVariable) {
	s.Hidden[name] = h
}

// RemoveHidden deletes a hidden variable. Removing an absent name is a no-op.
func (s *Store) RemoveHidden(name string) bool {
	if _, ok := s.Hidden[name]; !ok {
		return false
	}
	delete(s.Hidden, name)
	return true
}

// Clone returns a fully independent deep copy of the store.
func (s *Store) Clone() *Store {
	c := NewStore()
	for name, v := range s.Variables {
		c.Variables[name] = v.Clone()
	}
	for name, t := range s.Tables {
		c.Tables[name] = t.Clone()
	}
	for name, h := range s.Hidden {
		c.Hidden[name] = h.Clone()
	}
	return c
}

// Encode serializes the full store for persistence. Payloads are always the
// whole store; there are no partial writes.
func (s *Store) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode store: %w", err)
	}
	return data, nil
}

// Decode deserializes a persisted store payload.
func Decode(data []byte) (*Store, error) {
	s := NewStore()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	if s.Variables == nil {
		s.Variables = make(map[string]*Variable)
	}
	if s.Tables == nil {
		s.Tables = make(map[string]*Table)
	}
	if s.Hidden == nil {
		s.Hidden = make(map[string]*HiddenVariable)
	}
	return s, nil
}
