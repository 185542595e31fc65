package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/actionstore/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Limit    int
	ID       string
}

// TraceResult is the journal listing.
type TraceResult struct {
	Operations []journal.Operation `json:"operations"`
	Outcomes   map[string]int      `json:"outcomes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List coordinated operations from a journal",
		Long: `List the coordinated operations recorded in a SQLite journal, in
order, with their outcome and error code. --verbose adds the captured
store values before and after each operation.

Examples:
  actionstore trace --db ./ops.db
  actionstore trace --db ./ops.db --limit 20
  actionstore trace --db ./ops.db --id 01890a5d-ac96-774b-bcce-b302099a8057 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of operations (0 = all)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show a single operation")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening would create an empty journal.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	result, err := readTrace(ctx, j, opts)
	if err != nil {
		return err
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	if out.JSON() {
		return out.Success(result)
	}
	printTrace(out, result, opts.Verbose)
	return nil
}

func readTrace(ctx context.Context, j *journal.Journal, opts *TraceOptions) (TraceResult, error) {
	var result TraceResult
	if opts.ID != "" {
		op, err := j.ReadOperation(ctx, opts.ID)
		if errors.Is(err, journal.ErrNotFound) {
			return result, WrapExitError(ExitCommandError, "unknown operation", err)
		}
		if err != nil {
			return result, WrapExitError(ExitCommandError, "failed to read operation", err)
		}
		result.Operations = []journal.Operation{op}
		result.Outcomes = map[string]int{op.Outcome: 1}
		return result, nil
	}

	ops, err := j.ReadOperations(ctx, opts.Limit)
	if err != nil {
		return result, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	counts, err := j.CountByOutcome(ctx)
	if err != nil {
		return result, WrapExitError(ExitCommandError, "failed to count outcomes", err)
	}
	result.Operations = ops
	result.Outcomes = counts
	return result, nil
}

func printTrace(out *OutputFormatter, result TraceResult, verbose bool) {
	if len(result.Operations) == 0 {
		out.Printf("No operations recorded.")
		return
	}

	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tMODE\tOUTCOME\tCODE\tSTORES")
	for _, op := range result.Operations {
		code := op.Code
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", op.Seq, op.ID, op.Mode, op.Outcome, code, strings.Join(op.Stores, ","))
		if verbose {
			if op.Reason != "" {
				fmt.Fprintf(tw, "\treason: %s\n", op.Reason)
			}
			if op.Before != nil {
				fmt.Fprintf(tw, "\tbefore: %s\n", op.Before)
				fmt.Fprintf(tw, "\tafter:  %s\n", op.After)
			}
		}
	}
	_ = tw.Flush()

	out.Printf("\n%d committed, %d rolled back, %d failed",
		result.Outcomes["committed"], result.Outcomes["rolled_back"], result.Outcomes["failed"])
}
