package compare

import (
	"log/slog"
	"math"
	"reflect"
	"time"
)

// hardDepthLimit bounds deep recursion when neither MaxDepth nor
// CircularCheck is set. A Go stack overflow cannot be recovered, so an
// unguarded cyclic pair must stop somewhere; beyond this depth the
// remaining substructure is compared by reference.
const hardDepthLimit = 10000

var timeType = reflect.TypeOf(time.Time{})

// Equal reports whether a and b are equal under opts.
//
// Equal never panics. A failure inside the comparison (including a panicking
// custom predicate) is logged and degrades to reference equality for this
// call only.
func Equal(a, b any, opts Options) (eq bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("comparison failed, falling back to reference equality",
				"strategy", opts.Strategy,
				"panic", r,
			)
			eq = safeReference(a, b)
		}
	}()

	switch opts.Strategy {
	case StrategyShallow:
		return Shallow(a, b)
	case StrategyDeep:
		return Deep(a, b, opts.MaxDepth, opts.CircularCheck)
	case StrategyCustom:
		if opts.Custom == nil {
			slog.Warn("custom comparison strategy without predicate, using reference equality")
			return Reference(a, b)
		}
		return callCustom(opts.Custom, a, b)
	default:
		return Reference(a, b)
	}
}

func callCustom(fn func(a, b any) bool, a, b any) (eq bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("custom comparator panicked, falling back to reference equality",
				"panic", r,
			)
			eq = safeReference(a, b)
		}
	}()
	return fn(a, b)
}

func safeReference(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return Reference(a, b)
}

// Reference reports identity equality.
//
// Scalars compare by value with identity semantics for floats (NaN equals NaN,
// +0 differs from -0). Pointers, maps, slices, chans and funcs compare by
// identity. Arrays and structs compare element-wise by reference, so a struct
// holding a slice is equal only if both hold the same backing array.
func Reference(a, b any) bool {
	return refEqual(reflect.ValueOf(a), reflect.ValueOf(b))
}

func refEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return sameFloat(a.Float(), b.Float())
	case reflect.Complex64, reflect.Complex128:
		ca, cb := a.Complex(), b.Complex()
		return sameFloat(real(ca), real(cb)) && sameFloat(imag(ca), imag(cb))
	case reflect.String:
		return a.String() == b.String()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		return a.Len() == b.Len() && a.Pointer() == b.Pointer()
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !refEqual(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !refEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return refEqual(a.Elem(), b.Elem())
	default:
		return false
	}
}

// sameFloat reports IEEE identity: NaN equals NaN, +0 differs from -0.
func sameFloat(x, y float64) bool {
	if math.IsNaN(x) && math.IsNaN(y) {
		return true
	}
	if x == 0 && y == 0 {
		return math.Signbit(x) == math.Signbit(y)
	}
	return x == y
}

// Shallow compares one level of container contents by reference.
//
// Slices and arrays need equal length and reference-equal elements; maps need
// the same key set and reference-equal values; structs compare field-wise.
// Non-nil pointers of the same type are dereferenced once, so *struct values
// behave like plain objects.
func Shallow(a, b any) bool {
	return shallowEqual(reflect.ValueOf(a), reflect.ValueOf(b))
}

func shallowEqual(a, b reflect.Value) bool {
	if refEqual(a, b) {
		return true
	}
	if !a.IsValid() || !b.IsValid() || a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Pointer:
		if a.IsNil() || b.IsNil() {
			return false
		}
		return shallowContents(a.Elem(), b.Elem())
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return false
		}
		return shallowEqual(a.Elem(), b.Elem())
	default:
		return shallowContents(a, b)
	}
}

func shallowContents(a, b reflect.Value) bool {
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !refEqual(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() || !refEqual(iter.Value(), bv) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !refEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	default:
		return refEqual(a, b)
	}
}

// visit identifies an in-progress (a, b) comparison for cycle detection.
type visit struct {
	a1, a2 uintptr
	n      int
	typ    reflect.Type
}

type deepState struct {
	limit         int
	circularCheck bool
	visited       map[visit]bool
}

// Deep compares a and b structurally.
//
// maxDepth caps recursion (0 means uncapped); substructure beyond the cap is
// compared by reference. With circularCheck, a pair of containers already
// being compared is treated as equal, so cyclic graphs terminate.
func Deep(a, b any, maxDepth int, circularCheck bool) bool {
	st := &deepState{
		limit:         maxDepth,
		circularCheck: circularCheck,
	}
	if st.limit <= 0 {
		st.limit = hardDepthLimit
	}
	if circularCheck {
		st.visited = make(map[visit]bool)
	}
	return deepEqual(reflect.ValueOf(a), reflect.ValueOf(b), 0, st)
}

func deepEqual(a, b reflect.Value, depth int, st *deepState) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	if depth > st.limit {
		return refEqual(a, b)
	}

	if a.Type() == timeType && a.CanInterface() && b.CanInterface() {
		return a.Interface().(time.Time).Equal(b.Interface().(time.Time))
	}

	if st.circularCheck {
		switch a.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice:
			if !a.IsNil() && !b.IsNil() {
				p1, p2 := a.Pointer(), b.Pointer()
				if p1 > p2 {
					p1, p2 = p2, p1
				}
				v := visit{a1: p1, a2: p2, typ: a.Type()}
				if a.Kind() == reflect.Slice {
					if a.Len() != b.Len() {
						return false
					}
					v.n = a.Len()
				}
				if st.visited[v] {
					return true
				}
				st.visited[v] = true
				defer delete(st.visited, v)
			}
		}
	}

	switch a.Kind() {
	case reflect.Pointer:
		if a.Pointer() == b.Pointer() {
			return true
		}
		if a.IsNil() || b.IsNil() {
			return false
		}
		return deepEqual(a.Elem(), b.Elem(), depth+1, st)
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return deepEqual(a.Elem(), b.Elem(), depth, st)
	case reflect.Slice:
		if a.Len() != b.Len() {
			return false
		}
		if a.Len() > 0 && a.Pointer() == b.Pointer() {
			return true
		}
		for i := 0; i < a.Len(); i++ {
			if !deepEqual(a.Index(i), b.Index(i), depth+1, st) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !deepEqual(a.Index(i), b.Index(i), depth+1, st) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		if a.Pointer() == b.Pointer() {
			return true
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() || !deepEqual(iter.Value(), bv, depth+1, st) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !deepEqual(a.Field(i), b.Field(i), depth+1, st) {
				return false
			}
		}
		return true
	default:
		return refEqual(a, b)
	}
}
