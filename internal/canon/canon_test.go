package canon

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalString(t *testing.T, v any) string {
	t.Helper()
	b, err := Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestMarshal_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, "null"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"int", 42, "42"},
		{"negative int64", int64(-7), "-7"},
		{"uint8", uint8(255), "255"},
		{"integral float", 5.0, "5"},
		{"fraction", 0.5, "0.5"},
		{"negative zero", math.Copysign(0, -1), "0"},
		{"small exponent", 1e-7, "1e-7"},
		{"large exponent", 1e21, "1e+21"},
		{"below exponent threshold", 1e20, "100000000000000000000"},
		{"float32", float32(0.25), "0.25"},
		{"json number int", json.Number("12"), "12"},
		{"json number float", json.Number("1.50"), "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marshalString(t, tt.in))
		})
	}
}

func TestMarshal_Strings(t *testing.T) {
	assert.Equal(t, `"<a & b>"`, marshalString(t, "<a & b>"), "no HTML escaping")
	assert.Equal(t, `"line\nbreak\t\"q\" \\"`, marshalString(t, "line\nbreak\t\"q\" \\"))
	assert.Equal(t, `"\u0001"`, marshalString(t, "\x01"))
	assert.Equal(t, "\"\u2028\"", marshalString(t, "\u2028"), "line separator is not escaped")

	// "e" + combining acute accent normalizes to the precomposed form.
	assert.Equal(t, "\"\u00e9\"", marshalString(t, "e\u0301"))
}

func TestMarshal_ObjectKeyOrder(t *testing.T) {
	obj := map[string]any{
		"b":  1,
		"a":  2,
		"aa": 3,
		"B":  4,
	}
	assert.Equal(t, `{"B":4,"a":2,"aa":3,"b":1}`, marshalString(t, obj))
}

func TestCompareKeys_UTF16Order(t *testing.T) {
	// U+FF61 sorts before U+1F600 by UTF-8 bytes but after it in UTF-16,
	// where the emoji is a surrogate pair starting at 0xD83D.
	assert.Equal(t, 1, CompareKeys("\uff61", "\U0001F600"))
	assert.Equal(t, -1, CompareKeys("a", "b"))
	assert.Equal(t, -1, CompareKeys("a", "ab"))
	assert.Equal(t, 0, CompareKeys("x", "x"))
}

func TestMarshal_Nested(t *testing.T) {
	v := map[string]any{
		"list": []any{1, "two", nil, map[string]any{"z": true, "y": false}},
	}
	assert.Equal(t, `{"list":[1,"two",null,{"y":false,"z":true}]}`, marshalString(t, v))
}

func TestMarshal_RoundTripsOtherTypes(t *testing.T) {
	type point struct {
		Y int    `json:"y"`
		X int    `json:"x"`
		L string `json:"label,omitempty"`
	}
	assert.Equal(t, `{"x":1,"y":2}`, marshalString(t, point{X: 1, Y: 2}))
	assert.Equal(t, `[1,2,3]`, marshalString(t, []int{1, 2, 3}))
	assert.Equal(t, `{"a":1,"b":2}`, marshalString(t, map[string]int{"b": 2, "a": 1}))
	assert.Equal(t, `"2025-01-01T00:00:00Z"`, marshalString(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMarshal_Errors(t *testing.T) {
	_, err := Marshal(math.NaN())
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"k": math.Inf(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `["k"]`)

	_, err = Marshal(make(chan int))
	assert.Error(t, err)

	assert.Panics(t, func() { MustMarshal(math.NaN()) })
}

func TestMarshal_Deterministic(t *testing.T) {
	v := map[string]any{"c": 3, "a": 1, "b": []any{map[string]any{"y": 1, "x": 2}}}
	first := marshalString(t, v)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, marshalString(t, v))
	}
}
