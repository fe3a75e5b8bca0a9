package scope

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/narratek/storyvars/internal/command"
	"github.com/narratek/storyvars/internal/lock"
	"github.com/narratek/storyvars/internal/macro"
	"github.com/narratek/storyvars/internal/storage"
	"github.com/narratek/storyvars/internal/vars"
)

// Manager binds one scope to its store, lock region, and storage backend.
// Every mutating operation acquires the scope's region for its full
// parse-mutate-persist duration, so concurrent batches against the same
// scope serialize and never interleave. Macro resolution stays outside the
// region; its only side effect, hidden-variable expiry, is marked in memory
// and persisted by the next lock-protected write.
type Manager struct {
	scope     Scope
	store     *vars.Store
	locks     *lock.Registry
	backend   storage.Backend
	interp    *command.Interpreter
	engine    *macro.Engine
	scriptID  string
	verbosity int

	expiryDirty atomic.Bool
}

func newManager(sc Scope, locks *lock.Registry, backend storage.Backend, interp *command.Interpreter, engine *macro.Engine, scriptID string, verbosity int) *Manager {
	return &Manager{
		scope:     sc,
		store:     vars.NewStore(),
		locks:     locks,
		backend:   backend,
		interp:    interp,
		engine:    engine,
		scriptID:  scriptID,
		verbosity: verbosity,
	}
}

// Scope returns the manager's scope identity.
func (m *Manager) Scope() Scope {
	return m.scope
}

// Init hydrates the scope's store. An explicit initial store wins over
// persisted bytes and is re-persisted; otherwise the store is loaded from
// the backend, or created empty when nothing was persisted.
func (m *Manager) Init(initial *vars.Store) error {
	release := m.locks.Acquire(m.scope.LockName())
	defer release()

	if initial != nil {
		m.store = initial.Clone()
		return m.persistLocked()
	}

	data, found, err := m.backend.Load(m.scope.Key())
	if err != nil {
		return fmt.Errorf("scope %s: load: %w", m.scope, err)
	}
	if !found {
		m.store = vars.NewStore()
		return nil
	}

	store, err := vars.Decode(data)
	if err != nil {
		return fmt.Errorf("scope %s: decode: %w", m.scope, err)
	}
	m.store = store
	if m.verbosity >= 2 {
		log.Printf("[v2] scope %s hydrated: %d vars, %d tables, %d hidden",
			m.scope, len(store.Variables), len(store.Tables), len(store.Hidden))
	}
	return nil
}

// Store returns the scope's in-memory store. The store is exclusively owned
// by this manager; callers must not mutate it outside manager operations.
func (m *Manager) Store() *vars.Store {
	return m.store
}

// GetVar returns one variable by name.
func (m *Manager) GetVar(name string) (*vars.Variable, bool) {
	return m.store.Variable(name)
}

// persistLocked writes the full store through to the backend. Callers hold
// the scope's region.
func (m *Manager) persistLocked() error {
	data, err := m.store.Encode()
	if err != nil {
		return fmt.Errorf("scope %s: %w", m.scope, err)
	}
	if err := m.backend.Save(m.scope.Key(), data); err != nil {
		return fmt.Errorf("scope %s: save: %w", m.scope, err)
	}
	m.expiryDirty.Store(false)
	if m.verbosity >= 4 {
		log.Printf("[v4] scope %s persisted %d bytes", m.scope, len(data))
	}
	return nil
}

// mutate runs fn inside the scope's lock region and persists the store
// before returning when fn reports a change (or a deferred hidden-variable
// expiry is pending).
func (m *Manager) mutate(fn func(store *vars.Store) bool) error {
	release := m.locks.Acquire(m.scope.LockName())
	defer release()

	changed := fn(m.store)
	if changed || m.expiryDirty.Load() {
		return m.persistLocked()
	}
	return nil
}

// RegisterVar declares or overwrites a variable and persists.
func (m *Manager) RegisterVar(name string, v *vars.Variable) error {
	return m.mutate(func(store *vars.Store) bool {
		store.SetVariable(name, v)
		return true
	})
}

// UnregisterVar removes a variable; removing an absent name is a no-op.
func (m *Manager) UnregisterVar(name string) error {
	return m.mutate(func(store *vars.Store) bool {
		return store.RemoveVariable(name)
	})
}

// RegisterTable declares or overwrites a table and persists.
func (m *Manager) RegisterTable(t *vars.Table) error {
	return m.mutate(func(store *vars.Store) bool {
		store.SetTable(t)
		return true
	})
}

// UnregisterTable removes a table; removing an absent name is a no-op.
func (m *Manager) UnregisterTable(name string) error {
	return m.mutate(func(store *vars.Store) bool {
		return store.RemoveTable(name)
	})
}

// RegisterHiddenVar declares or overwrites a hidden variable and persists.
func (m *Manager) RegisterHiddenVar(name string, h *vars.HiddenVariable) error {
	return m.mutate(func(store *vars.Store) bool {
		store.SetHidden(name, h)
		return true
	})
}

// UnregisterHiddenVar removes a hidden variable; absent names are a no-op.
func (m *Manager) UnregisterHiddenVar(name string) error {
	return m.mutate(func(store *vars.Store) bool {
		return store.RemoveHidden(name)
	})
}

// ParseCommands interprets mutation directives in text against this scope,
// atomically with respect to any other operation on the same scope. A
// persistence failure is the only hard error; directive-level failures are
// reported in the result's logs.
func (m *Manager) ParseCommands(text string) (command.Result, error) {
	release := m.locks.Acquire(m.scope.LockName())
	defer release()

	res := m.interp.ParseCommands(text, m.store)
	if res.Changed || m.expiryDirty.Load() {
		if err := m.persistLocked(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ParseRegisterCommands interprets declaration directives in text. When a
// text may carry both declaration and mutation directives, this must run
// before ParseCommands so dotted setVar paths can assume their roots exist.
func (m *Manager) ParseRegisterCommands(text string) (command.Result, error) {
	release := m.locks.Acquire(m.scope.LockName())
	defer release()

	res := m.interp.ParseRegisterCommands(text, m.store)
	if res.Changed || m.expiryDirty.Load() {
		if err := m.persistLocked(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ParseAllCommands interprets declaration and then mutation directives in
// one atomic pass. Prefer this over chaining ParseRegisterCommands and
// ParseCommands for text that may carry both kinds: entities are decoded
// once and the scope persists once.
func (m *Manager) ParseAllCommands(text string) (command.Result, error) {
	release := m.locks.Acquire(m.scope.LockName())
	defer release()

	res := m.interp.ParseAllCommands(text, m.store)
	if res.Changed || m.expiryDirty.Load() {
		if err := m.persistLocked(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// defaultDynamicID is the identity a dynamic macro falls back to when it
// names none: the character id, or the bound script id for the global scope.
func (m *Manager) defaultDynamicID() string {
	if m.scope.IsGlobal() {
		return m.scriptID
	}
	return m.scope.ID()
}

// ReplaceMacros resolves every ${...} reference in text against this scope.
// It does not take the scope's lock; a hidden-variable expiry observed here
// is marked in memory and persisted by the next locked write.
func (m *Manager) ReplaceMacros(text string) string {
	out, expired := m.engine.Replace(text, m.store, m.defaultDynamicID())
	if len(expired) > 0 {
		m.expiryDirty.Store(true)
		if m.verbosity >= 3 {
			log.Printf("[v3] scope %s hidden variables expired: %v", m.scope, expired)
		}
	}
	return out
}

// ReplaceMacrosDynamic resolves macros and then substitutes deferred
// dynamic-macro placeholders through the resolver, which may perform
// asynchronous I/O. Resolver failures degrade to inline markers.
func (m *Manager) ReplaceMacrosDynamic(ctx context.Context, text string, resolver macro.Resolver) string {
	out := m.ReplaceMacros(text)
	return macro.ResolveDeferred(ctx, out, resolver)
}
