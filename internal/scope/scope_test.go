package scope

import "testing"

func TestScopeIdentity(t *testing.T) {
	g := Global()
	if !g.IsGlobal() || g.Key() != "global" || g.LockName() != "scope:global" {
		t.Errorf("global scope: %q %q", g.Key(), g.LockName())
	}

	c := Character("elena")
	if c.IsGlobal() {
		t.Error("character scope reported global")
	}
	if c.ID() != "elena" || c.Key() != "char:elena" || c.LockName() != "scope:char:elena" {
		t.Errorf("character scope: %q %q %q", c.ID(), c.Key(), c.LockName())
	}

	// Zero value behaves as the global scope.
	var zero Scope
	if !zero.IsGlobal() || zero.Key() != "global" {
		t.Errorf("zero scope: %q", zero.Key())
	}
}

func TestScopeFromKey(t *testing.T) {
	sc, err := ScopeFromKey("global")
	if err != nil || !sc.IsGlobal() {
		t.Errorf("global: %v %v", sc, err)
	}

	sc, err = ScopeFromKey("char:elena")
	if err != nil || sc.ID() != "elena" {
		t.Errorf("char:elena: %v %v", sc, err)
	}

	for _, key := range []string{"", "char:", "session:x"} {
		if _, err := ScopeFromKey(key); err == nil {
			t.Errorf("key %q: expected error", key)
		}
	}
}
