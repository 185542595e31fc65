package registry

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/roach88/actionstore/internal/clock"
	"github.com/roach88/actionstore/internal/store"
)

// Metadata describes a registered store.
//
// Metadata lives in the registry entry and is dropped on Unregister; it is
// never kept alive independently of the registration.
type Metadata struct {
	RegisteredAt time.Time
	Tags         []string
	Description  string
}

// Entry is one [name, store] pair of a registry snapshot.
type Entry struct {
	Name  string
	Store store.Handle
}

// Snapshot is the immutable, ordered content of a registry at one instant.
// The same pointer is returned by Registry.Snapshot until the next
// Register/Unregister/Clear.
type Snapshot struct {
	Entries []Entry
	Version int64
}

type entry struct {
	store store.Handle
	meta  Metadata
}

// Option configures a Registry.
type Option func(*Registry)

// WithNow sets the time source for Metadata.RegisteredAt.
func WithNow(now clock.NowFunc) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithClock sets the logical clock used to stamp snapshot versions.
func WithClock(c *clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// Registry is a named directory of stores that is itself observable.
//
// Subscribers are notified on every Register/Unregister/Clear, never on
// inner store value changes. Names are unique; registering an existing name
// replaces the store (last write wins) and logs a warning. A replaced entry
// keeps its original position in the ordering.
//
// Thread-safety: all methods are safe for concurrent use. Listeners run
// after the internal lock is released.
type Registry struct {
	name      string
	mu        sync.RWMutex
	order     []string
	entries   map[string]*entry
	snapshot  *Snapshot
	listeners *store.Notifier
	now       clock.NowFunc
	clock     *clock.Clock
}

// New creates an empty registry. name appears in log output only.
func New(name string, opts ...Option) *Registry {
	r := &Registry{
		name:      name,
		entries:   make(map[string]*entry),
		listeners: store.NewNotifier("registry:" + name),
		now:       clock.SystemNow,
		clock:     clock.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.snapshot = &Snapshot{Version: r.clock.Next()}
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string {
	return r.name
}

// Register inserts or replaces the store under name.
//
// At most one Metadata may be passed; RegisteredAt is filled in when zero.
func (r *Registry) Register(name string, s store.Handle, meta ...Metadata) {
	var m Metadata
	if len(meta) > 0 {
		m = meta[0]
	}
	if m.RegisteredAt.IsZero() {
		m.RegisteredAt = r.now()
	}
	m.Tags = append([]string(nil), m.Tags...)

	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		slog.Warn("store already registered, overwriting",
			"registry", r.name,
			"store", name,
		)
	} else {
		r.order = append(r.order, name)
	}
	r.entries[name] = &entry{store: s, meta: m}
	r.rebuildLocked()
	r.mu.Unlock()

	r.listeners.Notify()
}

// Unregister removes the store under name and clears its listeners.
// A store with a Cleanup method (a computed store) is cleaned up too.
// Returns false if no store was registered under name.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	removed := r.unregisterLocked(name)
	if removed {
		r.rebuildLocked()
	}
	r.mu.Unlock()

	if removed {
		r.listeners.Notify()
	}
	return removed
}

func (r *Registry) unregisterLocked(name string) bool {
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.store.ClearListeners()
	if c, ok := e.store.(interface{ Cleanup() }); ok {
		c.Cleanup()
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear unregisters every store, applying the same cleanup as Unregister.
func (r *Registry) Clear() {
	r.mu.Lock()
	if len(r.order) == 0 {
		r.mu.Unlock()
		return
	}
	for _, name := range append([]string(nil), r.order...) {
		r.unregisterLocked(name)
	}
	r.rebuildLocked()
	r.mu.Unlock()

	r.listeners.Notify()
}

// rebuildLocked allocates a fresh snapshot. Caller holds r.mu.
func (r *Registry) rebuildLocked() {
	entries := make([]Entry, len(r.order))
	for i, name := range r.order {
		entries[i] = Entry{Name: name, Store: r.entries[name].store}
	}
	r.snapshot = &Snapshot{Entries: entries, Version: r.clock.Next()}
}

// Get returns the store registered under name.
func (r *Registry) Get(name string) (store.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.store, true
}

// Has reports whether a store is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Metadata returns the metadata recorded for name.
func (r *Registry) Metadata(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Metadata{}, false
	}
	m := e.meta
	m.Tags = append([]string(nil), e.meta.Tags...)
	return m, true
}

// All returns the registered stores in registration order.
func (r *Registry) All() []store.Handle {
	snap := r.Snapshot()
	out := make([]store.Handle, len(snap.Entries))
	for i, e := range snap.Entries {
		out[i] = e.Store
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered stores.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns the current ordered content. Callers must not modify
// the returned entries.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Subscribe registers a listener for registry mutations.
func (r *Registry) Subscribe(fn func()) func() {
	return r.listeners.Subscribe(fn)
}

// ListenerCount returns the number of registry listeners.
func (r *Registry) ListenerCount() int {
	return r.listeners.Count()
}

// Filter builds a new registry containing the entries for which keep
// returns true. Metadata is carried over; the stores are shared, not copied.
func (r *Registry) Filter(keep func(name string, s store.Handle, meta Metadata) bool) *Registry {
	r.mu.RLock()
	type pair struct {
		name string
		e    entry
	}
	pairs := make([]pair, 0, len(r.order))
	for _, name := range r.order {
		pairs = append(pairs, pair{name: name, e: *r.entries[name]})
	}
	r.mu.RUnlock()

	out := New(r.name+"/filtered", WithNow(r.now), WithClock(r.clock))
	for _, p := range pairs {
		if keep(p.name, p.e.store, p.e.meta) {
			out.Register(p.name, p.e.store, p.e.meta)
		}
	}
	return out
}

// Lookup returns the store under name as a *store.Store[T].
func Lookup[T any](r *Registry, name string) (*store.Store[T], error) {
	h, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("store %q not registered", name)
	}
	switch s := h.(type) {
	case *store.Store[T]:
		return s, nil
	case interface{ Underlying() *store.Store[T] }:
		return s.Underlying(), nil
	}
	return nil, fmt.Errorf("store %q has type %T, not *store.Store[%v]", name, h, reflect.TypeOf((*T)(nil)).Elem())
}
