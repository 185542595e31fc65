package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/actionstore/internal/config"
	"github.com/roach88/actionstore/internal/eventbus"
)

// Events emitted on the watch command's bus.
const (
	eventReloaded     = "reloaded"
	eventApplyFailed  = "apply_failed"
	watchEventsPrefix = "config"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <config>",
		Short: "Build a registry and re-seed it whenever the seed file changes",
		Long: `Build the registry declared by a seed file, print it, then watch the
file and re-apply it on every write. Plain stores keep their subscribers
across reloads; computed stores are rebuilt. Invalid edits are reported and
the previous registry stays active.

Stops on SIGINT or SIGTERM.

Example:
  actionstore watch ./seed.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runWatch(opts *RootOptions, path string, cmd *cobra.Command) error {
	reg, cfg, err := buildRegistry(path)
	if err != nil {
		return err
	}
	if err := config.ApplyGlobalComparison(cfg); err != nil {
		return WrapExitError(ExitCommandError, "failed to apply comparison", err)
	}

	out := newFormatter(opts, cmd.OutOrStdout())
	if err := printRegistry(out, reg); err != nil {
		return err
	}

	bus := eventbus.New(eventbus.WithHistorySize(cfg.History))
	events := bus.Scope(watchEventsPrefix)
	events.On(eventReloaded, func(any) {
		if err := printRegistry(out, reg); err != nil {
			slog.Error("watch: print failed", "error", err)
		}
	})
	events.On(eventApplyFailed, func(data any) {
		slog.Error("watch: apply failed, keeping previous registry", "path", path, "error", data)
	})

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = config.Watch(ctx, path, func(next *config.Config) {
		if err := config.Apply(reg, next); err != nil {
			events.Emit(eventApplyFailed, err)
			return
		}
		if err := config.ApplyGlobalComparison(next); err != nil {
			slog.Warn("watch: comparison not applied", "error", err)
		}
		events.Emit(eventReloaded, path)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch config", err)
	}

	slog.Debug("watch: stopped",
		"path", path,
		"reloads", len(bus.HistoryFor(watchEventsPrefix+":"+eventReloaded)),
	)
	return nil
}
