package computed

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionstore/internal/compare"
	"github.com/roach88/actionstore/internal/registry"
	"github.com/roach88/actionstore/internal/store"
)

func TestComputed_SumOfTwoStores(t *testing.T) {
	a := store.New("A", 2)
	b := store.New("B", 3)

	sum := Derive2("sum", a, b, func(x, y int) int { return x + y })
	assert.Equal(t, 5, sum.Value(), "initial value computed eagerly")

	calls := 0
	sum.Subscribe(func() { calls++ })

	a.SetValue(10)
	assert.Equal(t, 13, sum.Value())
	assert.Equal(t, 1, calls, "listeners fire exactly once per dependency change")
}

func TestComputed_ReadsAllDependencies(t *testing.T) {
	a := store.New("a", 1)
	b := store.New("b", 1)

	var seen [][]any
	c := New("c", []store.Handle{a, b}, func(v []any) int {
		seen = append(seen, append([]any(nil), v...))
		return v[0].(int) * v[1].(int)
	})

	b.SetValue(4)
	require.Len(t, seen, 2)
	assert.Equal(t, []any{1, 4}, seen[1], "unchanged dependency is read too")
	assert.Equal(t, 4, c.Value())
}

func TestComputed_EqualDerivedValueDoesNotNotify(t *testing.T) {
	n := store.New("n", 2)
	parity := Derive1("parity", n, func(x int) bool { return x%2 == 0 })

	calls := 0
	parity.Subscribe(func() { calls++ })

	n.SetValue(4)
	assert.Equal(t, 0, calls)
	n.SetValue(5)
	assert.Equal(t, 1, calls)
	assert.False(t, parity.Value())
}

func TestComputed_DeepComparisonOption(t *testing.T) {
	n := store.New("n", 1)
	list := Derive1("list", n, func(x int) []int { return []int{x % 2} },
		store.WithComparison(compare.Options{Strategy: compare.StrategyDeep}))

	calls := 0
	list.Subscribe(func() { calls++ })

	n.SetValue(3)
	assert.Equal(t, 0, calls, "structurally equal slice is rejected")
}

func TestComputed_Cleanup(t *testing.T) {
	a := store.New("a", 1)
	c := Derive1("double", a, func(x int) int { return x * 2 })
	assert.Equal(t, 1, a.ListenerCount())

	c.Cleanup()
	c.Cleanup()
	assert.True(t, c.Closed())
	assert.Equal(t, 0, a.ListenerCount())

	a.SetValue(5)
	assert.Equal(t, 2, c.Value(), "no recomputation after cleanup")
}

func TestComputed_RebindReleasesOldSubscriptions(t *testing.T) {
	a := store.New("a", 1)

	oldRuns := 0
	old := Derive1("f", a, func(x int) int { oldRuns++; return x + 1 })
	assert.Equal(t, 1, oldRuns)

	next := old.Rebind(func(v []any) int { return v[0].(int) * 100 })
	assert.True(t, old.Closed())
	assert.Equal(t, 1, a.ListenerCount(), "only the replacement is subscribed")
	assert.Equal(t, 100, next.Value())

	a.SetValue(2)
	assert.Equal(t, 1, oldRuns, "stale compute never runs again")
	assert.Equal(t, 200, next.Value())
}

func TestComputed_PanicKeepsPreviousValue(t *testing.T) {
	a := store.New("a", 1)
	c := Derive1("inv", a, func(x int) int {
		if x == 0 {
			panic("division by zero")
		}
		return 10 / x
	})

	require.NotPanics(t, func() { a.SetValue(0) })
	assert.Equal(t, 10, c.Value())

	a.SetValue(5)
	assert.Equal(t, 2, c.Value())
}

func TestComputed_NewEReportsInitialError(t *testing.T) {
	a := store.New("a", "x")
	c, err := NewE("e", []store.Handle{a}, func(v []any) (int, error) {
		return 0, errors.New("not ready")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Value())
	c.Cleanup()
}

func TestComputed_ChainedComputed(t *testing.T) {
	a := store.New("a", 1)
	double := Derive1("double", a, func(x int) int { return x * 2 })
	quad := Derive1("quad", double.Underlying(), func(x int) int { return x * 2 })

	a.SetValue(3)
	assert.Equal(t, 12, quad.Value())
}

func TestComputed_RegistryLookup(t *testing.T) {
	a := store.New("a", 1)
	c := Derive1("label", a, func(x int) string { return strings.Repeat("*", x) })

	r := registry.New("test")
	r.Register("label", c)

	s, err := registry.Lookup[string](r, "label")
	require.NoError(t, err)
	assert.Same(t, c.Underlying(), s)
}

func TestComputed_Derive3(t *testing.T) {
	a := store.New("a", 1)
	b := store.New("b", "x")
	f := store.New("c", true)

	c := Derive3("joined", a, b, f, func(n int, s string, ok bool) string {
		if !ok {
			return ""
		}
		return strings.Repeat(s, n)
	})
	a.SetValue(3)
	assert.Equal(t, "xxx", c.Value())
	f.SetValue(false)
	assert.Equal(t, "", c.Value())
	assert.Len(t, c.Dependencies(), 3)
}

func TestComputed_NilDependencyValue(t *testing.T) {
	a := store.New[any]("a", nil)
	c := Derive1("isNil", a, func(v any) bool { return v == nil })
	assert.True(t, c.Value())

	p := store.New[*int]("p", nil)
	d := Derive1("deref", p, func(v *int) int {
		if v == nil {
			return -1
		}
		return *v
	})
	assert.Equal(t, -1, d.Value())
}
