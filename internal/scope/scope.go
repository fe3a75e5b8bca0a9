// Package scope binds a scope identity to its variable store, lock region,
// and persistence key, and exposes the scope-level operations callers use.
// There are two disjoint namespaces: the single global scope and one scope
// per character, lazily created and cached by the Registry.
package scope

// Scope identifies one isolated variable namespace: the global scope or a
// character scope. The zero value is the global scope.
type Scope struct {
	character string
}

// Global returns the global scope.
func Global() Scope {
	return Scope{}
}

// Character returns the scope for one character identity.
func Character(id string) Scope {
	return Scope{character: id}
}

// IsGlobal reports whether this is the global scope.
func (s Scope) IsGlobal() bool {
	return s.character == ""
}

// ID returns the character identity, or "" for the global scope.
func (s Scope) ID() string {
	return s.character
}

// Key derives the persistence key: "global" or "char:<id>".
func (s Scope) Key() string {
	if s.IsGlobal() {
		return "global"
	}
	return "char:" + s.character
}

// LockName derives the named lock region for this scope.
func (s Scope) LockName() string {
	return "scope:" + s.Key()
}

// String returns the scope key.
func (s Scope) String() string {
	return s.Key()
}
