package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/actionstore/internal/canon"
)

// Snapshot returns the canonical golden form of a run: its name, trace and
// final store values.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		trace[i] = e.toMap()
	}
	final := make(map[string]any, len(result.Final))
	for k, v := range result.Final {
		final[k] = v
	}
	return canon.Marshal(map[string]any{
		"name":  name,
		"trace": trace,
		"final": final,
	})
}

// RunWithGolden executes a scenario and compares its trace and final state
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against the golden file for
// name without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
