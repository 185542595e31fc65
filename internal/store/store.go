package store

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/actionstore/internal/clock"
	"github.com/roach88/actionstore/internal/compare"
)

// ErrTypeMismatch is returned by SetAny when the value does not fit the
// store's element type.
var ErrTypeMismatch = errors.New("value type mismatch")

// Snapshot is the immutable state of a store at one instant.
//
// A new Snapshot is allocated on every accepted change; existing snapshots
// are never mutated, so a reader holding one always sees a consistent view.
type Snapshot[T any] struct {
	Value      T
	Name       string
	LastUpdate time.Time

	// Version is the logical clock seq of the change that produced this
	// snapshot. The initial snapshot also takes a seq.
	Version int64
}

// Handle is the type-erased view of a store used by the registry, computed
// stores and the transaction coordinator.
type Handle interface {
	Name() string
	Subscribe(fn func()) func()
	Any() any
	SetAny(v any) (bool, error)
	ListenerCount() int
	ClearListeners()
}

var _ Handle = (*Store[int])(nil)

// Option configures a Store.
type Option func(*settings)

type settings struct {
	comparison *compare.Options
	clock      *clock.Clock
	now        clock.NowFunc
}

// WithComparison sets per-store comparison options. They override the
// global default for this store regardless of later SetGlobalOptions calls.
func WithComparison(opts compare.Options) Option {
	return func(s *settings) {
		if opts.Strategy == "" {
			opts.Strategy = compare.StrategyReference
		}
		s.comparison = &opts
	}
}

// WithClock sets the logical clock used to stamp snapshot versions.
// Default: clock.Default().
func WithClock(c *clock.Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithNow sets the wall-time source for Snapshot.LastUpdate.
func WithNow(now clock.NowFunc) Option {
	return func(s *settings) {
		s.now = now
	}
}

// Store is a single-value reactive container.
//
// SetValue accepts a value only when it differs from the current one under
// the effective comparison options; accepted changes replace the snapshot
// and synchronously notify listeners before SetValue returns.
//
// Thread-safety model:
//   - Snapshot()/Value(): lock-free, safe from any goroutine and from
//     within a notification
//   - SetValue()/Update(): compare-and-swap is serialized per store;
//     listeners run after the lock is released
type Store[T any] struct {
	name      string
	mu        sync.Mutex
	current   atomic.Pointer[Snapshot[T]]
	listeners *Notifier
	settings  settings
}

// New creates a store with the given name and initial value.
func New[T any](name string, initial T, opts ...Option) *Store[T] {
	st := settings{
		clock: clock.Default(),
		now:   clock.SystemNow,
	}
	for _, opt := range opts {
		opt(&st)
	}

	s := &Store[T]{
		name:      name,
		listeners: NewNotifier(name),
		settings:  st,
	}
	s.current.Store(s.newSnapshot(initial))
	return s
}

func (s *Store[T]) newSnapshot(v T) *Snapshot[T] {
	return &Snapshot[T]{
		Value:      v,
		Name:       s.name,
		LastUpdate: s.settings.now(),
		Version:    s.settings.clock.Next(),
	}
}

// Name returns the store's immutable name.
func (s *Store[T]) Name() string {
	return s.name
}

// Subscribe registers a zero-argument listener and returns its unsubscribe
// function.
func (s *Store[T]) Subscribe(fn func()) func() {
	return s.listeners.Subscribe(fn)
}

// SubscribeListener registers a deduplicated listener.
func (s *Store[T]) SubscribeListener(l Listener) func() {
	return s.listeners.SubscribeListener(l)
}

// Snapshot returns the current snapshot. The pointer is stable until the
// next accepted change.
func (s *Store[T]) Snapshot() *Snapshot[T] {
	return s.current.Load()
}

// Value returns the current value.
func (s *Store[T]) Value() T {
	return s.current.Load().Value
}

// Comparison returns the effective comparison options: the per-store
// override when present, otherwise the current global default.
func (s *Store[T]) Comparison() compare.Options {
	if s.settings.comparison != nil {
		return *s.settings.comparison
	}
	return compare.GlobalOptions()
}

// SetValue replaces the value if it differs from the current one.
// Returns true if the change was accepted and listeners were notified.
// Repeated calls with an equal value are no-ops.
func (s *Store[T]) SetValue(v T) bool {
	s.mu.Lock()
	cur := s.current.Load()
	if compare.Equal(cur.Value, v, s.Comparison()) {
		s.mu.Unlock()
		return false
	}
	s.current.Store(s.newSnapshot(v))
	s.mu.Unlock()

	s.listeners.Notify()
	return true
}

// Update applies fn to the current value and forwards the result to
// SetValue. fn must not call SetValue on this store.
func (s *Store[T]) Update(fn func(current T) T) bool {
	return s.SetValue(fn(s.Value()))
}

// ListenerCount returns the number of registered listeners.
func (s *Store[T]) ListenerCount() int {
	return s.listeners.Count()
}

// ClearListeners removes every listener.
func (s *Store[T]) ClearListeners() {
	s.listeners.Clear()
}

// Any returns the current value as any.
func (s *Store[T]) Any() any {
	return s.Value()
}

// SetAny is SetValue for callers that only hold a Handle.
// Returns ErrTypeMismatch (wrapped) when v is not a T.
func (s *Store[T]) SetAny(v any) (bool, error) {
	typed, err := assertValue[T](v)
	if err != nil {
		return false, fmt.Errorf("store %q: %w", s.name, err)
	}
	return s.SetValue(typed), nil
}

func assertValue[T any](v any) (T, error) {
	var zero T
	if v == nil {
		switch reflect.TypeOf((*T)(nil)).Elem().Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return zero, nil
		}
		return zero, fmt.Errorf("%w: nil is not a %v", ErrTypeMismatch, reflect.TypeOf((*T)(nil)).Elem())
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %v, got %T", ErrTypeMismatch, reflect.TypeOf((*T)(nil)).Elem(), v)
	}
	return typed, nil
}
