package compare

import (
	"fmt"
	"strings"
	"sync"
)

// Strategy selects how two values are compared.
type Strategy string

const (
	// StrategyReference compares scalars by value and references by identity.
	StrategyReference Strategy = "reference"

	// StrategyShallow compares one level of container contents by reference.
	StrategyShallow Strategy = "shallow"

	// StrategyDeep compares recursively by structure.
	StrategyDeep Strategy = "deep"

	// StrategyCustom delegates to Options.Custom.
	StrategyCustom Strategy = "custom"
)

// ValidStrategies lists the accepted strategy names.
var ValidStrategies = []Strategy{StrategyReference, StrategyShallow, StrategyDeep, StrategyCustom}

// ParseStrategy converts a config string to a Strategy.
// The empty string maps to StrategyReference.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyReference:
		return StrategyReference, nil
	case StrategyShallow:
		return StrategyShallow, nil
	case StrategyDeep:
		return StrategyDeep, nil
	case StrategyCustom:
		return StrategyCustom, nil
	default:
		return "", fmt.Errorf("invalid comparison strategy %q: must be one of %v", s, ValidStrategies)
	}
}

// Options configures a comparison.
type Options struct {
	Strategy Strategy

	// MaxDepth caps deep recursion. Zero means no explicit cap.
	// Substructure beyond the cap is compared by reference.
	MaxDepth int

	// Custom is the predicate used by StrategyCustom.
	Custom func(a, b any) bool

	// CircularCheck enables the visited-pairs guard for deep comparison.
	CircularCheck bool
}

// DefaultOptions returns the built-in process default: reference comparison.
func DefaultOptions() Options {
	return Options{Strategy: StrategyReference}
}

var (
	globalMu   sync.RWMutex
	globalOpts = DefaultOptions()
)

// SetGlobalOptions replaces the process-wide default comparison options.
//
// Intended to be called once at startup. Stores configured with
// store.WithComparison ignore the global default entirely.
func SetGlobalOptions(opts Options) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyReference
	}
	globalMu.Lock()
	globalOpts = opts
	globalMu.Unlock()
}

// GlobalOptions returns the current process-wide default comparison options.
func GlobalOptions() Options {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalOpts
}

// ResetGlobalOptions restores the built-in default. Used by tests.
func ResetGlobalOptions() {
	SetGlobalOptions(DefaultOptions())
}
