package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/actionstore/internal/compare"
	"github.com/roach88/actionstore/internal/config"
	"github.com/roach88/actionstore/internal/registry"
	"github.com/roach88/actionstore/internal/store"
)

// StoreInfo describes one registered store.
type StoreInfo struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"` // "store" or "computed"
	Value       any      `json:"value"`
	Comparison  string   `json:"comparison"`
	Deps        []string `json:"deps,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

// RegistryInfo describes a registry built from a seed file.
type RegistryInfo struct {
	Name   string      `json:"name"`
	Stores []StoreInfo `json:"stores"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <config>",
		Short: "Build a registry from a seed file and show its stores",
		Long: `Load a YAML or CUE seed file, build the registry it declares and
print every store with its current value.

Examples:
  actionstore inspect ./seed.yaml
  actionstore inspect ./seed.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := buildRegistry(args[0])
			if err != nil {
				return err
			}
			return printRegistry(newFormatter(rootOpts, cmd.OutOrStdout()), reg)
		},
	}
	return cmd
}

// buildRegistry loads path and builds its registry, named after the file.
func buildRegistry(path string) (*registry.Registry, *config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	reg, err := config.Build(name, cfg, nil)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to build registry", err)
	}
	return reg, cfg, nil
}

// describeRegistry collects StoreInfo for every entry in registration order.
func describeRegistry(reg *registry.Registry) RegistryInfo {
	info := RegistryInfo{Name: reg.Name(), Stores: []StoreInfo{}}
	for _, name := range reg.Names() {
		h, ok := reg.Get(name)
		if !ok {
			continue
		}
		si := StoreInfo{Name: name, Kind: "store", Value: h.Any()}
		if c, ok := h.(interface{ Comparison() compare.Options }); ok {
			si.Comparison = string(c.Comparison().Strategy)
		}
		if d, ok := h.(interface{ Dependencies() []store.Handle }); ok {
			si.Kind = "computed"
			for _, dep := range d.Dependencies() {
				si.Deps = append(si.Deps, dep.Name())
			}
		}
		if meta, ok := reg.Metadata(name); ok {
			si.Tags = meta.Tags
			si.Description = meta.Description
		}
		info.Stores = append(info.Stores, si)
	}
	return info
}

func printRegistry(out *OutputFormatter, reg *registry.Registry) error {
	info := describeRegistry(reg)
	if out.JSON() {
		return out.Success(info)
	}

	out.Printf("Registry: %s (%d stores)", info.Name, len(info.Stores))
	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	for _, s := range info.Stores {
		extra := s.Description
		if len(s.Deps) > 0 {
			extra = strings.TrimSpace("deps=" + strings.Join(s.Deps, ",") + " " + extra)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", s.Name, s.Kind, s.Comparison, formatValue(s.Value), extra)
	}
	return tw.Flush()
}
