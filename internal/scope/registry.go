package scope

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/narratek/storyvars/internal/command"
	"github.com/narratek/storyvars/internal/cond"
	"github.com/narratek/storyvars/internal/lock"
	"github.com/narratek/storyvars/internal/macro"
	"github.com/narratek/storyvars/internal/storage"
	"github.com/narratek/storyvars/internal/vars"
)

// Registry caches one initialized Manager per scope. Managers are created
// and hydrated on first access and dropped only by explicit invalidation
// (the persisted bytes remain until deleted externally).
type Registry struct {
	backend   storage.Backend
	locks     *lock.Registry
	eval      *cond.Evaluator
	interp    *command.Interpreter
	engine    *macro.Engine
	scriptID  string
	verbosity int

	mu       sync.Mutex
	managers map[string]*managerEntry
}

// managerEntry gates first-access hydration: a manager is visible to callers
// only after its once has run, so no Get can observe an un-hydrated store.
type managerEntry struct {
	once     sync.Once
	m        *Manager
	err      error
	hydrated atomic.Bool
}

// ready returns an entry whose hydration gate is already consumed, for
// managers initialized through an explicit path rather than lazy Get.
func ready(m *Manager) *managerEntry {
	e := &managerEntry{m: m}
	e.once.Do(func() {})
	e.hydrated.Store(true)
	return e
}

// Option configures a Registry.
type Option func(*Registry)

// WithTagNames remaps the directive tag vocabulary.
func WithTagNames(names command.TagNames) Option {
	return func(r *Registry) {
		r.interp = command.New(names)
	}
}

// WithScriptID binds the script identity used by global-scope dynamic
// macros that name no explicit id.
func WithScriptID(id string) Option {
	return func(r *Registry) {
		r.scriptID = id
	}
}

// WithVerbosity sets the diagnostic logging level.
func WithVerbosity(level int) Option {
	return func(r *Registry) {
		r.verbosity = level
	}
}

// WithMacroPasses overrides the macro engine's nested-resolution pass limit.
func WithMacroPasses(n int) Option {
	return func(r *Registry) {
		r.engine.SetMaxPasses(n)
	}
}

// NewRegistry creates a registry over the given persistence backend.
func NewRegistry(backend storage.Backend, opts ...Option) *Registry {
	eval := cond.NewEvaluator()
	r := &Registry{
		backend:  backend,
		locks:    lock.NewRegistry(),
		eval:     eval,
		interp:   command.New(DefaultTagNames()),
		engine:   macro.NewEngine(eval),
		managers: make(map[string]*managerEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.interp.SetVerbosity(r.verbosity)
	return r
}

// DefaultTagNames re-exports the default directive vocabulary.
func DefaultTagNames() command.TagNames {
	return command.DefaultTagNames()
}

// Get returns the cached manager for a scope, creating and hydrating it from
// persisted bytes on first access. Concurrent Gets for the same scope wait on
// the one hydration; none of them can observe the store before it is loaded.
func (r *Registry) Get(sc Scope) (*Manager, error) {
	r.mu.Lock()
	e, ok := r.managers[sc.Key()]
	if !ok {
		e = &managerEntry{m: newManager(sc, r.locks, r.backend, r.interp, r.engine, r.scriptID, r.verbosity)}
		r.managers[sc.Key()] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.err = e.m.Init(nil)
		if e.err == nil {
			e.hydrated.Store(true)
			if r.verbosity >= 1 {
				log.Printf("[v1] scope %s manager created", sc)
			}
		}
	})
	if e.err != nil {
		r.Invalidate(sc)
		return nil, e.err
	}
	return e.m, nil
}

// Init creates (or replaces) a scope's manager from an explicit initial
// store, which wins over any persisted bytes.
func (r *Registry) Init(sc Scope, initial *vars.Store) (*Manager, error) {
	m := newManager(sc, r.locks, r.backend, r.interp, r.engine, r.scriptID, r.verbosity)
	if err := m.Init(initial); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.managers[sc.Key()] = ready(m)
	r.mu.Unlock()
	return m, nil
}

// Invalidate drops a scope's cached manager. The next access re-hydrates
// from the backend; the persisted payload is untouched.
func (r *Registry) Invalidate(sc Scope) {
	r.mu.Lock()
	delete(r.managers, sc.Key())
	r.mu.Unlock()
	if r.verbosity >= 1 {
		log.Printf("[v1] scope %s manager invalidated", sc)
	}
}

// Close releases the registry's shared resources.
func (r *Registry) Close() {
	r.eval.Close()
}

// cached returns all hydrated cached managers.
func (r *Registry) cached() []*Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Manager, 0, len(r.managers))
	for _, e := range r.managers {
		if e.hydrated.Load() {
			out = append(out, e.m)
		}
	}
	return out
}

// managerFor returns the cached manager for key, if hydrated.
func (r *Registry) managerFor(key string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.managers[key]
	if !ok || !e.hydrated.Load() {
		return nil, false
	}
	return e.m, true
}

// ensure returns the manager for sc without hydrating, creating it if
// absent. Used by snapshot import, which replaces state wholesale.
func (r *Registry) ensure(sc Scope) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.managers[sc.Key()]
	if !ok {
		e = ready(newManager(sc, r.locks, r.backend, r.interp, r.engine, r.scriptID, r.verbosity))
		r.managers[sc.Key()] = e
	}
	return e.m
}
