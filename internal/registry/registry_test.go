package registry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionstore/internal/clock"
	"github.com/roach88/actionstore/internal/store"
	"github.com/roach88/actionstore/internal/testutil"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New("test", WithNow(testutil.NewStepTime().Now), WithClock(clock.New()))
}

// captureLogs redirects the default slog logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRegistry_RegisterAndQuery(t *testing.T) {
	r := newTestRegistry(t)
	a := store.New("a", 1)
	b := store.New("b", "two")

	r.Register("a", a)
	r.Register("b", b, Metadata{Tags: []string{"ui"}, Description: "label"})

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.True(t, r.Has("b"))
	assert.False(t, r.Has("c"))
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, []store.Handle{a, b}, r.All())

	meta, ok := r.Metadata("b")
	require.True(t, ok)
	assert.Equal(t, []string{"ui"}, meta.Tags)
	assert.Equal(t, "label", meta.Description)
	assert.Equal(t, testutil.Epoch.Add(1e9), meta.RegisteredAt)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_OverwriteWarnsAndReplaces(t *testing.T) {
	logs := captureLogs(t)
	r := newTestRegistry(t)
	first := store.New("count", 1)
	second := store.New("count", 2)

	r.Register("other", store.New("other", 0))
	r.Register("count", first)

	require.NotPanics(t, func() { r.Register("count", second) })

	got, ok := r.Get("count")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, []string{"other", "count"}, r.Names(), "overwrite keeps original position")
	assert.Contains(t, logs.String(), "store already registered, overwriting")
	assert.Contains(t, logs.String(), "store=count")
}

func TestRegistry_UnregisterClearsListeners(t *testing.T) {
	r := newTestRegistry(t)
	s := store.New("a", 0)
	s.Subscribe(func() {})
	r.Register("a", s, Metadata{Tags: []string{"x"}})

	assert.True(t, r.Unregister("a"))
	assert.Equal(t, 0, s.ListenerCount())
	assert.False(t, r.Has("a"))
	_, ok := r.Metadata("a")
	assert.False(t, ok, "metadata is dropped with the entry")

	assert.False(t, r.Unregister("a"), "second unregister removes nothing")
}

// derived stands in for a computed store: a handle that owns upstream
// subscriptions released by Cleanup.
type derived struct {
	*store.Store[int]
	cleanups int
}

func (d *derived) Cleanup() { d.cleanups++ }

func TestRegistry_UnregisterCallsCleanup(t *testing.T) {
	r := newTestRegistry(t)
	d := &derived{Store: store.New("d", 0)}
	r.Register("d", d)
	r.Register("plain", store.New("plain", 0))

	require.True(t, r.Unregister("d"))
	assert.Equal(t, 1, d.cleanups)

	e := &derived{Store: store.New("e", 0)}
	r.Register("e", e)
	r.Clear()
	assert.Equal(t, 1, e.cleanups, "clear cleans up like unregister")
	assert.Equal(t, 1, d.cleanups)
}

func TestRegistry_SubscribeOnMutationOnly(t *testing.T) {
	r := newTestRegistry(t)
	s := store.New("a", 0)

	calls := 0
	r.Subscribe(func() { calls++ })

	r.Register("a", s)
	assert.Equal(t, 1, calls)

	s.SetValue(5)
	assert.Equal(t, 1, calls, "inner value changes do not notify registry listeners")

	r.Unregister("missing")
	assert.Equal(t, 1, calls)

	r.Unregister("a")
	assert.Equal(t, 2, calls)
}

func TestRegistry_SnapshotStability(t *testing.T) {
	r := newTestRegistry(t)

	empty := r.Snapshot()
	assert.Empty(t, empty.Entries)
	assert.Same(t, empty, r.Snapshot())

	a := store.New("a", 0)
	r.Register("a", a)
	snap := r.Snapshot()
	assert.NotSame(t, empty, snap)
	assert.Equal(t, []Entry{{Name: "a", Store: a}}, snap.Entries)
	assert.Greater(t, snap.Version, empty.Version)
	assert.Empty(t, empty.Entries, "old snapshot unchanged")

	a.SetValue(1)
	assert.Same(t, snap, r.Snapshot(), "store value changes leave the registry snapshot alone")
}

func TestRegistry_Clear(t *testing.T) {
	r := newTestRegistry(t)
	a := store.New("a", 0)
	b := store.New("b", 0)
	a.Subscribe(func() {})
	b.Subscribe(func() {})
	r.Register("a", a)
	r.Register("b", b)

	calls := 0
	r.Subscribe(func() { calls++ })

	r.Clear()
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, a.ListenerCount())
	assert.Equal(t, 0, b.ListenerCount())
	assert.Equal(t, 1, calls)

	r.Clear()
	assert.Equal(t, 1, calls, "clearing an empty registry does not notify")
}

func TestRegistry_Filter(t *testing.T) {
	r := newTestRegistry(t)
	a := store.New("a", 0)
	b := store.New("b", 0)
	c := store.New("c", 0)
	r.Register("a", a, Metadata{Tags: []string{"ui"}})
	r.Register("b", b)
	r.Register("c", c, Metadata{Tags: []string{"ui"}})

	ui := r.Filter(func(name string, s store.Handle, meta Metadata) bool {
		for _, tag := range meta.Tags {
			if tag == "ui" {
				return true
			}
		}
		return false
	})

	assert.Equal(t, []string{"a", "c"}, ui.Names())
	got, _ := ui.Get("c")
	assert.Same(t, c, got, "filtered registry shares store instances")
	assert.Equal(t, 3, r.Count(), "source registry is untouched")
}

func TestLookup(t *testing.T) {
	r := newTestRegistry(t)
	r.Register("count", store.New("count", 1))

	s, err := Lookup[int](r, "count")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Value())

	_, err = Lookup[string](r, "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not *store.Store[string]")

	_, err = Lookup[int](r, "missing")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	r := newTestRegistry(t)

	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	got, ok := FromContext(WithRegistry(context.Background(), r))
	require.True(t, ok)
	assert.Same(t, r, got)

	_, ok = FromContext(WithRegistry(context.Background(), nil))
	assert.False(t, ok)
}
