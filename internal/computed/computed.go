package computed

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/actionstore/internal/store"
)

// Computed is a store whose value is derived from dependency stores.
//
// The initial value is computed eagerly from every dependency's current
// value. A listener on each dependency re-reads ALL dependency values and
// feeds the result through the embedded store's SetValue, so a derived value
// that compares equal does not notify.
//
// A compute function that panics or fails is logged and the previous value
// is kept.
type Computed[T any] struct {
	*store.Store[T]

	deps    []store.Handle
	compute func(values []any) (T, error)
	opts    []store.Option

	mu     sync.Mutex
	unsubs []func()
	closed bool
}

var _ store.Handle = (*Computed[int])(nil)

// New creates a computed store over deps. values passed to compute are the
// dependency values in deps order.
func New[T any](name string, deps []store.Handle, compute func(values []any) T, opts ...store.Option) *Computed[T] {
	c, _ := build(name, deps, func(values []any) (T, error) {
		return compute(values), nil
	}, opts)
	return c
}

// NewE is New for compute functions that can fail. The error from the
// initial computation is returned alongside the store, which then holds the
// zero value; later failures are logged.
func NewE[T any](name string, deps []store.Handle, compute func(values []any) (T, error), opts ...store.Option) (*Computed[T], error) {
	return build(name, deps, compute, opts)
}

func build[T any](name string, deps []store.Handle, compute func([]any) (T, error), opts []store.Option) (*Computed[T], error) {
	deps = append([]store.Handle(nil), deps...)
	c := &Computed[T]{
		deps:    deps,
		compute: compute,
		opts:    opts,
	}

	initial, err := c.evaluate(name)
	c.Store = store.New(name, initial, opts...)

	c.unsubs = make([]func(), 0, len(deps))
	for _, d := range deps {
		c.unsubs = append(c.unsubs, d.Subscribe(c.recompute))
	}
	return c, err
}

// evaluate reads every dependency and runs compute, converting a panic into
// an error.
func (c *Computed[T]) evaluate(name string) (v T, err error) {
	values := make([]any, len(c.deps))
	for i, d := range c.deps {
		values[i] = d.Any()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("computed %q: compute panicked: %v", name, r)
		}
		if err != nil {
			slog.Error("computed store evaluation failed",
				"store", name,
				"error", err,
			)
		}
	}()
	return c.compute(values)
}

func (c *Computed[T]) recompute() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	v, err := c.evaluate(c.Name())
	if err != nil {
		return
	}
	c.SetValue(v)
}

// Dependencies returns the dependency stores in order.
func (c *Computed[T]) Dependencies() []store.Handle {
	return append([]store.Handle(nil), c.deps...)
}

// Underlying returns the embedded store.
func (c *Computed[T]) Underlying() *store.Store[T] {
	return c.Store
}

// Cleanup releases every dependency subscription. The store keeps its last
// value and its own listeners. Cleanup is idempotent.
func (c *Computed[T]) Cleanup() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// Closed reports whether Cleanup has run.
func (c *Computed[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Rebind replaces the compute function. The receiver is cleaned up before
// the replacement is created over the same dependencies and options, so no
// stale recomputation survives the swap.
func (c *Computed[T]) Rebind(compute func(values []any) T) *Computed[T] {
	c.Cleanup()
	return New(c.Name(), c.deps, compute, c.opts...)
}

// as converts a dependency value to A, mapping nil to the zero value.
func as[A any](v any) A {
	typed, _ := v.(A)
	return typed
}

// Derive1 creates a computed store from one typed dependency.
func Derive1[A, T any](name string, a *store.Store[A], fn func(A) T, opts ...store.Option) *Computed[T] {
	return New(name, []store.Handle{a}, func(v []any) T {
		return fn(as[A](v[0]))
	}, opts...)
}

// Derive2 creates a computed store from two typed dependencies.
func Derive2[A, B, T any](name string, a *store.Store[A], b *store.Store[B], fn func(A, B) T, opts ...store.Option) *Computed[T] {
	return New(name, []store.Handle{a, b}, func(v []any) T {
		return fn(as[A](v[0]), as[B](v[1]))
	}, opts...)
}

// Derive3 creates a computed store from three typed dependencies.
func Derive3[A, B, C, T any](name string, a *store.Store[A], b *store.Store[B], c *store.Store[C], fn func(A, B, C) T, opts ...store.Option) *Computed[T] {
	return New(name, []store.Handle{a, b, c}, func(v []any) T {
		return fn(as[A](v[0]), as[B](v[1]), as[C](v[2]))
	}, opts...)
}
