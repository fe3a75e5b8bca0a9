package scope

import (
	"sync"
	"testing"

	"github.com/narratek/storyvars/internal/storage"
	"github.com/narratek/storyvars/internal/vars"
)

func newTestRegistry(t *testing.T) (*Registry, storage.Backend) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	r := NewRegistry(backend, WithScriptID("script-1"))
	t.Cleanup(r.Close)
	return r, backend
}

func TestManagerPersistenceRoundTrip(t *testing.T) {
	r, backend := newTestRegistry(t)

	m, err := r.Get(Character("elena"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ParseCommands(`<setVar name="trust" value="3"/>`); err != nil {
		t.Fatal(err)
	}

	// Drop the cached manager; the next access hydrates from the backend.
	r.Invalidate(Character("elena"))
	m2, err := r.Get(Character("elena"))
	if err != nil {
		t.Fatal(err)
	}
	if m2 == m {
		t.Fatal("expected a fresh manager after invalidation")
	}
	v, ok := m2.GetVar("trust")
	if !ok || v.Value != float64(3) {
		t.Errorf("trust = %#v", v)
	}

	if _, found, _ := backend.Load("char:elena"); !found {
		t.Error("backend should hold the persisted payload")
	}
}

// gatedBackend blocks Load until released, so tests can hold a manager
// mid-hydration.
type gatedBackend struct {
	storage.Backend
	loading chan struct{}
	release chan struct{}
}

func (g *gatedBackend) Load(key string) ([]byte, bool, error) {
	g.loading <- struct{}{}
	<-g.release
	return g.Backend.Load(key)
}

// TestGetWaitsForHydration verifies a concurrent Get never hands out a
// manager whose store has not been loaded yet.
func TestGetWaitsForHydration(t *testing.T) {
	mem := storage.NewMemoryBackend()
	seed := NewRegistry(mem)
	m, err := seed.Get(Character("elena"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ParseCommands(`<setVar name="x" value="1"/>`); err != nil {
		t.Fatal(err)
	}
	seed.Close()

	gated := &gatedBackend{
		Backend: mem,
		loading: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := NewRegistry(gated)
	t.Cleanup(r.Close)

	go func() {
		r.Get(Character("elena"))
	}()
	<-gated.loading // first Get is inside Load now

	got := make(chan string, 1)
	go func() {
		m2, err := r.Get(Character("elena"))
		if err != nil {
			got <- err.Error()
			return
		}
		got <- m2.ReplaceMacros("x is ${x}")
	}()

	close(gated.release)
	if out := <-got; out != "x is 1" {
		t.Errorf("macro resolved to %q, want %q", out, "x is 1")
	}
}

// TestInitExplicitWins verifies an explicit initial store overrides persisted
// bytes and is immediately re-persisted.
func TestInitExplicitWins(t *testing.T) {
	r, _ := newTestRegistry(t)

	m, _ := r.Get(Global())
	if _, err := m.ParseCommands(`<setVar name="chapter" value="1"/>`); err != nil {
		t.Fatal(err)
	}

	initial := vars.NewStore()
	initial.SetVariable("chapter", &vars.Variable{Type: vars.TypeNumber, Value: float64(9)})
	m2, err := r.Init(Global(), initial)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := m2.GetVar("chapter"); v == nil || v.Value != float64(9) {
		t.Fatalf("chapter = %#v", v)
	}

	// The override survives invalidation, so it was persisted.
	r.Invalidate(Global())
	m3, _ := r.Get(Global())
	if v, _ := m3.GetVar("chapter"); v == nil || v.Value != float64(9) {
		t.Errorf("persisted chapter = %#v", v)
	}

	// The caller's store was cloned, not aliased.
	initial.SetVariable("chapter", &vars.Variable{Type: vars.TypeNumber, Value: float64(0)})
	if v, _ := m2.GetVar("chapter"); v.Value != float64(9) {
		t.Error("manager store aliases the caller's store")
	}
}

// TestConcurrentParseCommands verifies same-scope batches serialize: no
// increment is lost under concurrency.
func TestConcurrentParseCommands(t *testing.T) {
	r, _ := newTestRegistry(t)

	m, _ := r.Get(Global())
	if _, err := m.ParseCommands(`<setVar name="count" value="0"/>`); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := m.ParseCommands(`<setVar>count++</setVar>`); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, _ := m.GetVar("count")
	if v.Value != float64(workers*perWorker) {
		t.Errorf("count = %#v, want %d", v.Value, workers*perWorker)
	}
}

// TestHiddenExpiryDeferredPersist verifies macro resolution marks an expiry
// in memory and the next locked write persists it.
func TestHiddenExpiryDeferredPersist(t *testing.T) {
	r, _ := newTestRegistry(t)

	m, _ := r.Get(Character("elena"))
	err := m.RegisterHiddenVar("secret", &vars.HiddenVariable{
		Value:         "the key is under the mat",
		HasExpiration: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	out := m.ReplaceMacros("psst: ${secret}")
	if out != "psst: the key is under the mat" {
		t.Fatalf("out = %q", out)
	}

	// No directive in this text, but the pending expiry forces a persist.
	if _, err := m.ParseCommands("nothing to do"); err != nil {
		t.Fatal(err)
	}

	r.Invalidate(Character("elena"))
	m2, _ := r.Get(Character("elena"))
	h, ok := m2.Store().HiddenVariable("secret")
	if !ok || !h.IsExpired {
		t.Errorf("persisted hidden variable = %#v", h)
	}
	if out := m2.ReplaceMacros("${secret}"); out != "" {
		t.Errorf("expired reveal = %q", out)
	}
}

// TestScopeIsolation verifies character scopes do not see each other's or the
// global scope's variables.
func TestScopeIsolation(t *testing.T) {
	r, _ := newTestRegistry(t)

	g, _ := r.Get(Global())
	a, _ := r.Get(Character("ann"))
	b, _ := r.Get(Character("ben"))

	g.ParseCommands(`<setVar name="weather" value="rain"/>`)
	a.ParseCommands(`<setVar name="trust" value="5"/>`)

	if _, ok := b.GetVar("trust"); ok {
		t.Error("ben sees ann's variable")
	}
	if _, ok := a.GetVar("weather"); ok {
		t.Error("ann sees the global variable")
	}
	if out := b.ReplaceMacros("${trust}"); out != "" {
		t.Errorf("cross-scope macro resolved to %q", out)
	}
}

// TestMacroPassesOption verifies the configured pass limit reaches the
// shared macro engine.
func TestMacroPassesOption(t *testing.T) {
	backend := storage.NewMemoryBackend()
	r := NewRegistry(backend, WithMacroPasses(1))
	t.Cleanup(r.Close)

	m, _ := r.Get(Global())
	m.ParseCommands(`<setVar name="a" value="${b}"/><setVar name="b" value="done"/>`)

	if out := m.ReplaceMacros("${a}"); out != "${b}" {
		t.Errorf("one pass: got %q", out)
	}
}

// TestDynamicDefaultIdentity verifies the global scope falls back to the
// bound script id and character scopes to their own id.
func TestDynamicDefaultIdentity(t *testing.T) {
	r, _ := newTestRegistry(t)

	g, _ := r.Get(Global())
	if out := g.ReplaceMacros("${scriptHistoryRecent}"); out != "[DYNAMIC:scriptHistory:script-1:10]" {
		t.Errorf("global: %q", out)
	}

	c, _ := r.Get(Character("elena"))
	if out := c.ReplaceMacros("${characterChatRecent}"); out != "[DYNAMIC:chatHistory:elena:10]" {
		t.Errorf("character: %q", out)
	}
}
