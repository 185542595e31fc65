package compare

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

type tagged struct {
	Name string
	Tags []string
}

type node struct {
	Name string
	Next *node
}

func TestReference_Scalars(t *testing.T) {
	assert.True(t, Reference(1, 1))
	assert.False(t, Reference(1, 2))
	assert.True(t, Reference("a", "a"))
	assert.False(t, Reference(1, int64(1)), "different types are never equal")
	assert.True(t, Reference(nil, nil))
	assert.False(t, Reference(nil, 0))
}

func TestReference_FloatSemantics(t *testing.T) {
	nan := math.NaN()
	negZero := math.Copysign(0, -1)

	assert.True(t, Reference(nan, nan), "NaN equals NaN")
	assert.False(t, Reference(0.0, negZero), "+0 differs from -0")
	assert.True(t, Reference(negZero, negZero))
	assert.True(t, Reference(1.5, 1.5))
}

func TestReference_Identity(t *testing.T) {
	m1 := map[string]any{"n": 0}
	m2 := map[string]any{"n": 0}
	assert.True(t, Reference(m1, m1))
	assert.False(t, Reference(m1, m2))

	s := []int{1, 2, 3}
	assert.True(t, Reference(s, s))
	assert.False(t, Reference(s, []int{1, 2, 3}))
	assert.False(t, Reference(s, s[:2]), "same backing array but different length")

	p := &point{1, 2}
	assert.True(t, Reference(p, p))
	assert.False(t, Reference(p, &point{1, 2}))
}

func TestReference_StructsByValue(t *testing.T) {
	assert.True(t, Reference(point{1, 2}, point{1, 2}))

	tags := []string{"a"}
	assert.True(t, Reference(tagged{"x", tags}, tagged{"x", tags}))
	assert.False(t, Reference(tagged{"x", tags}, tagged{"x", []string{"a"}}))
}

func TestShallow_Maps(t *testing.T) {
	assert.True(t, Shallow(map[string]any{"n": 0}, map[string]any{"n": 0}))
	assert.False(t, Shallow(map[string]any{"n": 0}, map[string]any{"n": 1}))
	assert.False(t, Shallow(map[string]any{"n": 0}, map[string]any{"m": 0}))
	assert.False(t, Shallow(map[string]any{"n": 0}, map[string]any{"n": 0, "m": 1}))
}

func TestShallow_NestedByReference(t *testing.T) {
	inner := map[string]any{"y": 1}
	a := map[string]any{"x": inner}
	b := map[string]any{"x": inner}
	c := map[string]any{"x": map[string]any{"y": 1}}

	assert.True(t, Shallow(a, b), "same nested reference")
	assert.False(t, Shallow(a, c), "nested containers compare by reference only")
}

func TestShallow_SlicesAndPointers(t *testing.T) {
	assert.True(t, Shallow([]any{1, "a"}, []any{1, "a"}))
	assert.False(t, Shallow([]any{1, "a"}, []any{1, "b"}))
	assert.False(t, Shallow([]int{1}, []int{1, 2}))

	assert.True(t, Shallow(&point{1, 2}, &point{1, 2}))
	assert.False(t, Shallow(&point{1, 2}, &point{1, 3}))
	assert.False(t, Shallow(&point{1, 2}, (*point)(nil)))
}

func TestDeep_Nested(t *testing.T) {
	a := map[string]any{"x": map[string]any{"y": []any{1, 2, map[string]any{"z": "ok"}}}}
	b := map[string]any{"x": map[string]any{"y": []any{1, 2, map[string]any{"z": "ok"}}}}
	c := map[string]any{"x": map[string]any{"y": []any{1, 2, map[string]any{"z": "no"}}}}

	assert.True(t, Deep(a, b, 0, false))
	assert.False(t, Deep(a, c, 0, false))
}

func TestDeep_TimeByInstant(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.In(time.FixedZone("plus-one", 3600))

	assert.True(t, Deep(t1, t2, 0, false))
	assert.False(t, Reference(t1, t2))
	assert.True(t, Deep(map[string]time.Time{"at": t1}, map[string]time.Time{"at": t2}, 0, false))
}

func TestDeep_NilAndEmptyContainers(t *testing.T) {
	assert.True(t, Deep([]int(nil), []int{}, 0, false))
	assert.True(t, Deep(map[string]int(nil), map[string]int{}, 0, false))
}

func TestDeep_MaxDepth(t *testing.T) {
	a := map[string]any{"x": map[string]any{"y": map[string]any{"z": 1}}}
	b := map[string]any{"x": map[string]any{"y": map[string]any{"z": 1}}}

	assert.True(t, Deep(a, b, 0, false))
	assert.True(t, Deep(a, b, 3, false))
	assert.False(t, Deep(a, b, 1, false), "beyond the cap substructure compares by reference")
}

func TestDeep_SelfReference(t *testing.T) {
	x := &node{Name: "loop"}
	x.Next = x

	assert.True(t, Equal(x, x, Options{Strategy: StrategyDeep, CircularCheck: true}))

	m := map[string]any{}
	m["self"] = m
	assert.True(t, Equal(m, m, Options{Strategy: StrategyDeep, CircularCheck: true}))
}

func TestDeep_DistinctCycles(t *testing.T) {
	a := &node{Name: "a"}
	a.Next = &node{Name: "b", Next: a}
	b := &node{Name: "a"}
	b.Next = &node{Name: "b", Next: b}

	assert.True(t, Deep(a, b, 0, true))

	c := &node{Name: "a"}
	c.Next = &node{Name: "c", Next: c}
	assert.False(t, Deep(a, c, 0, true))
}

type window struct {
	Head, Full []int
}

func TestDeep_CircularCheckComparesSlicesOfDifferentLength(t *testing.T) {
	arr := []int{1, 2, 3}
	brr := []int{1, 2, 99}
	a := window{Head: arr[:2], Full: arr[:3]}
	b := window{Head: brr[:2], Full: brr[:3]}

	assert.False(t, Deep(a, b, 0, false))
	assert.False(t, Deep(a, b, 0, true), "a shorter prefix of the same arrays must not hide later elements")
	assert.False(t, Equal(a, b, Options{Strategy: StrategyDeep, CircularCheck: true}))

	brr[2] = 3
	assert.True(t, Deep(a, b, 0, true))
}

func TestDeep_CircularCheckRevisitsFinishedPairs(t *testing.T) {
	shared := &node{Name: "x"}
	other := &node{Name: "x"}
	a := []*node{shared, shared}
	b := []*node{other, other}
	assert.True(t, Deep(a, b, 0, true))

	other2 := &node{Name: "y"}
	c := []*node{shared, shared}
	d := []*node{other, other2}
	assert.False(t, Deep(c, d, 0, true))
}

func TestEqual_DispatchesStrategy(t *testing.T) {
	a := map[string]any{"n": []int{1}}
	b := map[string]any{"n": []int{1}}

	assert.False(t, Equal(a, b, Options{Strategy: StrategyReference}))
	assert.False(t, Equal(a, b, Options{Strategy: StrategyShallow}))
	assert.True(t, Equal(a, b, Options{Strategy: StrategyDeep}))
	assert.False(t, Equal(a, b, Options{}), "empty strategy means reference")
}

func TestEqual_Custom(t *testing.T) {
	opts := Options{
		Strategy: StrategyCustom,
		Custom: func(a, b any) bool {
			return a.(point).X == b.(point).X
		},
	}

	assert.True(t, Equal(point{1, 2}, point{1, 9}, opts))
	assert.False(t, Equal(point{1, 2}, point{2, 2}, opts))
}

func TestEqual_CustomPanicFallsBackToReference(t *testing.T) {
	opts := Options{
		Strategy: StrategyCustom,
		Custom: func(a, b any) bool {
			panic("boom")
		},
	}

	require.NotPanics(t, func() {
		assert.True(t, Equal(1, 1, opts))
		assert.False(t, Equal(1, 2, opts))
		assert.False(t, Equal(map[string]int{}, map[string]int{}, opts))
	})
}

func TestEqual_CustomWithoutPredicate(t *testing.T) {
	assert.True(t, Equal("a", "a", Options{Strategy: StrategyCustom}))
	assert.False(t, Equal([]int{1}, []int{1}, Options{Strategy: StrategyCustom}))
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyReference, false},
		{"reference", StrategyReference, false},
		{"Shallow", StrategyShallow, false},
		{" deep ", StrategyDeep, false},
		{"custom", StrategyCustom, false},
		{"fuzzy", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGlobalOptions(t *testing.T) {
	t.Cleanup(ResetGlobalOptions)

	assert.Equal(t, StrategyReference, GlobalOptions().Strategy)

	SetGlobalOptions(Options{Strategy: StrategyDeep, MaxDepth: 4})
	got := GlobalOptions()
	assert.Equal(t, StrategyDeep, got.Strategy)
	assert.Equal(t, 4, got.MaxDepth)

	SetGlobalOptions(Options{})
	assert.Equal(t, StrategyReference, GlobalOptions().Strategy, "empty strategy normalizes to reference")
}
