package config

import (
	"fmt"
	"log/slog"

	"github.com/roach88/actionstore/internal/computed"
	"github.com/roach88/actionstore/internal/compare"
	"github.com/roach88/actionstore/internal/registry"
	"github.com/roach88/actionstore/internal/store"
)

// Build creates a registry named name and seeds it from cfg.
// opts are applied to every store created (clock, time source).
func Build(name string, cfg *Config, regOpts []registry.Option, opts ...store.Option) (*registry.Registry, error) {
	reg := registry.New(name, regOpts...)
	if err := Apply(reg, cfg, opts...); err != nil {
		return nil, err
	}
	return reg, nil
}

// Apply seeds reg from cfg.
//
// A declared store whose name is already registered as a plain store keeps
// its instance (and its subscribers) and is reset to the declared initial
// value. Any other existing entry is replaced; a replaced computed store is
// cleaned up first. Computed stores are always rebuilt.
//
// cfg is first seeded into a scratch registry; when that fails (a bad
// expression, a failing first evaluation) reg is left untouched.
func Apply(reg *registry.Registry, cfg *Config, opts ...store.Option) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	scratch := registry.New(reg.Name() + ":check")
	err := seed(scratch, cfg, opts)
	for _, h := range scratch.All() {
		release(h)
	}
	if err != nil {
		return err
	}

	if err := seed(reg, cfg, opts); err != nil {
		return err
	}
	slog.Info("config: applied",
		"registry", reg.Name(),
		"stores", len(cfg.Stores),
		"computed", len(cfg.Computed),
	)
	return nil
}

func seed(reg *registry.Registry, cfg *Config, opts []store.Option) error {
	for _, decl := range cfg.Stores {
		storeOpts, err := optionsFor(cfg, decl.Comparison, opts)
		if err != nil {
			return fmt.Errorf("store %q: %w", decl.Name, err)
		}
		meta := registry.Metadata{Tags: decl.Tags, Description: decl.Description}

		if existing, ok := reg.Get(decl.Name); ok {
			if plain, ok := existing.(*store.Store[any]); ok {
				plain.SetValue(decl.Initial)
				slog.Debug("config: reset store", "store", decl.Name)
				continue
			}
			release(existing)
		}
		reg.Register(decl.Name, store.New[any](decl.Name, decl.Initial, storeOpts...), meta)
	}

	for _, decl := range cfg.Computed {
		storeOpts, err := optionsFor(cfg, decl.Comparison, opts)
		if err != nil {
			return fmt.Errorf("computed %q: %w", decl.Name, err)
		}
		deps := make([]store.Handle, len(decl.Deps))
		for i, d := range decl.Deps {
			h, ok := reg.Get(d)
			if !ok {
				return fmt.Errorf("computed %q: dependency %q not registered", decl.Name, d)
			}
			deps[i] = h
		}

		c, err := computed.FromExpr(decl.Name, deps, decl.Expr, storeOpts...)
		if err != nil {
			return err
		}
		if existing, ok := reg.Get(decl.Name); ok {
			release(existing)
		}
		reg.Register(decl.Name, c, registry.Metadata{Tags: decl.Tags, Description: decl.Description})
	}
	return nil
}

// ApplyGlobalComparison installs cfg.Comparison as the process-wide
// default when one is given.
func ApplyGlobalComparison(cfg *Config) error {
	if cfg.Comparison.IsZero() {
		return nil
	}
	opts, err := cfg.Comparison.Options()
	if err != nil {
		return err
	}
	compare.SetGlobalOptions(opts)
	return nil
}

// optionsFor returns the store options for one declaration: the
// declaration's comparison, else the file-wide one, plus the caller's.
func optionsFor(cfg *Config, own *ComparisonConfig, extra []store.Option) ([]store.Option, error) {
	out := append([]store.Option(nil), extra...)
	cc := cfg.Comparison
	if own != nil {
		cc = *own
	}
	if cc.IsZero() {
		return out, nil
	}
	opts, err := cc.Options()
	if err != nil {
		return nil, err
	}
	return append(out, store.WithComparison(opts)), nil
}

// release stops a replaced computed store from recomputing.
func release(h store.Handle) {
	if c, ok := h.(interface{ Cleanup() }); ok {
		c.Cleanup()
	}
}
