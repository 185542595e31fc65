package computed

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/roach88/actionstore/internal/store"
)

// Env is the evaluation environment of an expression-backed store: each
// dependency value under its store name, plus all of them under "deps" for
// names that are not valid identifiers.
type Env map[string]any

func newEnv(deps []store.Handle, values []any) Env {
	env := make(Env, len(deps)+1)
	byName := make(map[string]any, len(deps))
	for i, d := range deps {
		env[d.Name()] = values[i]
		byName[d.Name()] = values[i]
	}
	env["deps"] = byName
	return env
}

// Compile parses and type-checks src without a fixed environment, so
// dependency values may change type between evaluations.
func Compile(src string) (*vm.Program, error) {
	prg, err := expr.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", src, err)
	}
	return prg, nil
}

// FromExpr creates a computed store whose value is the result of the
// expr-lang expression src evaluated against the dependency values.
//
// A compile error or a failing first evaluation is returned and no store
// is created. Later evaluation errors are logged and keep the previous
// value.
func FromExpr(name string, deps []store.Handle, src string, opts ...store.Option) (*Computed[any], error) {
	prg, err := Compile(src)
	if err != nil {
		return nil, err
	}
	c, err := NewE(name, deps, func(values []any) (any, error) {
		return expr.Run(prg, newEnv(deps, values))
	}, opts...)
	if err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("computed %q: %w", name, err)
	}
	return c, nil
}
