package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/actionstore/internal/harness"
	"github.com/roach88/actionstore/internal/journal"
	"github.com/roach88/actionstore/internal/txn"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string // record coordinated operations here
	Golden  string // compare traces against <dir>/<name>.golden
	Update  bool   // rewrite golden files instead of comparing
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string               `json:"name"`
	File   string               `json:"file"`
	Pass   bool                 `json:"pass"`
	Errors []string             `json:"errors,omitempty"`
	Final  map[string]any       `json:"final,omitempty"`
	Trace  []harness.TraceEvent `json:"trace,omitempty"`
}

// RunResult aggregates every scenario of a run.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario|dir>...",
		Short: "Run store scenarios",
		Long: `Run YAML store scenarios and check their assertions.

Directories are expanded to the .yaml and .yml files they contain.
With --journal every coordinated operation is recorded in a SQLite
journal; operation IDs are then UUIDv7 instead of op-1, op-2, ...

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, journal cannot be opened)

Examples:
  actionstore run ./scenarios
  actionstore run ./scenarios/rollback.yaml --journal ./ops.db
  actionstore run ./scenarios --golden ./scenarios/golden --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite operation journal")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files")
	cmd.MarkFlagsMutuallyExclusive("journal", "golden")

	return cmd
}

func runScenarios(opts *RunOptions, args []string, cmd *cobra.Command) error {
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	files, err := findScenarioFiles(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	var runOpts []harness.Option
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		runOpts = append(runOpts,
			harness.WithRecorder(j),
			harness.WithIDGenerator(txn.UUIDv7Generator{}),
		)
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	result := RunResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	for _, file := range files {
		sr := runScenarioFile(opts, file, runOpts)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !opts.Verbose {
			sr.Trace = nil
			sr.Final = nil
		}
		result.Scenarios = append(result.Scenarios, sr)
		if !out.JSON() {
			printScenario(out, sr)
		}
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if out.JSON() {
			if err := out.Failure("E_SCENARIO_FAILED", msg, result); err != nil {
				return err
			}
		} else {
			out.Printf("\nSummary: %d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
		}
		return NewExitError(ExitFailure, msg)
	}

	if out.JSON() {
		return out.Success(result)
	}
	out.Printf("\nSummary: %d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
	return nil
}

func runScenarioFile(opts *RunOptions, file string, runOpts []harness.Option) ScenarioResult {
	sr := ScenarioResult{File: file}

	s, err := harness.LoadScenario(file)
	if err != nil {
		sr.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		sr.Errors = []string{err.Error()}
		return sr
	}
	sr.Name = s.Name

	res, err := harness.Run(s, runOpts...)
	if err != nil {
		sr.Errors = []string{err.Error()}
		return sr
	}
	sr.Pass = res.Pass
	sr.Errors = res.Errors
	sr.Final = res.Final
	sr.Trace = res.Trace

	if opts.Golden != "" {
		if err := checkGolden(opts, s.Name, res); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, err.Error())
		}
	}
	return sr
}

// checkGolden compares (or with --update, rewrites) the golden file for
// a scenario result.
func checkGolden(opts *RunOptions, name string, res *harness.Result) error {
	data, err := harness.Snapshot(name, res)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	path := filepath.Join(opts.Golden, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		return fmt.Errorf("trace does not match %s (run with --update to regenerate)", path)
	}
	return nil
}

// findScenarioFiles expands directories into their scenario files, sorted
// by name. Plain file arguments are kept as given.
func findScenarioFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func printScenario(out *OutputFormatter, sr ScenarioResult) {
	if sr.Pass {
		out.Printf("✓ %s", sr.Name)
	} else {
		out.Printf("✗ %s", sr.Name)
		for _, e := range sr.Errors {
			out.Printf("  %s", e)
		}
	}
	for _, ev := range sr.Trace {
		out.Printf("  %3d %-10s %s", ev.Seq, ev.Type, describeEvent(ev))
	}
}

// describeEvent renders the type-specific fields of a trace event.
func describeEvent(ev harness.TraceEvent) string {
	switch ev.Type {
	case harness.EventSet, harness.EventNotify:
		return fmt.Sprintf("%s = %s", ev.Store, formatValue(ev.Value))
	case harness.EventEmit:
		return fmt.Sprintf("%s %s", ev.Event, formatValue(ev.Data))
	case harness.EventUnregister:
		return ev.Store
	case harness.EventTxBegin:
		return fmt.Sprintf("%s %s [%s]", ev.Op, ev.Mode, strings.Join(ev.Stores, ", "))
	case harness.EventTxEnd:
		if ev.Code != "" {
			return fmt.Sprintf("%s %s %s", ev.Op, ev.Outcome, ev.Code)
		}
		return fmt.Sprintf("%s %s", ev.Op, ev.Outcome)
	default:
		return ev.Reason
	}
}
