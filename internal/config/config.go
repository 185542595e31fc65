package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/actionstore/internal/compare"
	"github.com/roach88/actionstore/internal/eventbus"
)

// Format identifies a config file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatFor picks the format from a file extension. Anything other than
// .cue is read as YAML (which also covers JSON).
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return FormatCUE
	}
	return FormatYAML
}

// Config seeds a registry with stores and computed stores.
type Config struct {
	// Comparison is the default for every declared store without its own.
	Comparison ComparisonConfig `yaml:"comparison" json:"comparison"`

	// History is the event bus history capacity.
	History int `yaml:"history" json:"history"`

	Stores   []StoreDecl    `yaml:"stores" json:"stores"`
	Computed []ComputedDecl `yaml:"computed" json:"computed"`
}

// ComparisonConfig is the file form of compare.Options. The custom
// strategy needs a Go predicate and cannot be configured from a file.
type ComparisonConfig struct {
	Strategy      string `yaml:"strategy" json:"strategy"`
	MaxDepth      int    `yaml:"max_depth" json:"max_depth"`
	CircularCheck bool   `yaml:"circular_check" json:"circular_check"`
}

// IsZero reports whether no comparison setting was given.
func (c ComparisonConfig) IsZero() bool {
	return c == ComparisonConfig{}
}

// Options converts the file form into compare.Options.
func (c ComparisonConfig) Options() (compare.Options, error) {
	strategy, err := compare.ParseStrategy(c.Strategy)
	if err != nil {
		return compare.Options{}, err
	}
	if strategy == compare.StrategyCustom {
		return compare.Options{}, errors.New("custom comparison cannot be configured from a file")
	}
	if c.MaxDepth < 0 {
		return compare.Options{}, fmt.Errorf("max_depth must be >= 0, got %d", c.MaxDepth)
	}
	return compare.Options{
		Strategy:      strategy,
		MaxDepth:      c.MaxDepth,
		CircularCheck: c.CircularCheck,
	}, nil
}

// StoreDecl declares one plain store.
type StoreDecl struct {
	Name        string            `yaml:"name" json:"name"`
	Initial     any               `yaml:"initial" json:"initial"`
	Comparison  *ComparisonConfig `yaml:"comparison,omitempty" json:"comparison,omitempty"`
	Tags        []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
}

// ComputedDecl declares an expression-backed computed store. Deps must
// name stores or computed stores declared before it.
type ComputedDecl struct {
	Name        string            `yaml:"name" json:"name"`
	Deps        []string          `yaml:"deps" json:"deps"`
	Expr        string            `yaml:"expr" json:"expr"`
	Comparison  *ComparisonConfig `yaml:"comparison,omitempty" json:"comparison,omitempty"`
	Tags        []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		History: eventbus.DefaultHistorySize,
	}
}

// Load reads, parses and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	cfg, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates config data. Numbers in initial values decode
// to int when integral and float64 otherwise, for both formats.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := defaults()
	switch format {
	case FormatCUE:
		if err := decodeCUE(data, cfg); err != nil {
			return nil, err
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}

	for i := range cfg.Stores {
		cfg.Stores[i].Initial = normalize(cfg.Stores[i].Initial)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeCUE evaluates a CUE document, requires it to be concrete and
// decodes it through its JSON form.
func decodeCUE(data []byte, cfg *Config) error {
	v := cuecontext.New().CompileBytes(data)
	if err := v.Err(); err != nil {
		return fmt.Errorf("compile cue: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate cue: %w", err)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("export cue: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode cue: %w", err)
	}
	return nil
}

// normalize maps decoded numbers onto int/float64 and rebuilds nested
// containers as []any and map[string]any.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(val), 10, 0); err == nil {
			return int(i)
		}
		f, _ := val.Float64()
		return f
	case int64:
		return int(val)
	case uint64:
		return int(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// Validate checks names, dependency order and comparison settings.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.History < 0 {
		errs = append(errs, fmt.Errorf("history must be >= 0, got %d", cfg.History))
	}
	if !cfg.Comparison.IsZero() {
		if _, err := cfg.Comparison.Options(); err != nil {
			errs = append(errs, fmt.Errorf("comparison: %w", err))
		}
	}

	declared := make(map[string]bool)
	for i, s := range cfg.Stores {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("stores[%d]: name is required", i))
			continue
		}
		if declared[s.Name] {
			errs = append(errs, fmt.Errorf("stores[%d]: duplicate name %q", i, s.Name))
		}
		declared[s.Name] = true
		if s.Comparison != nil {
			if _, err := s.Comparison.Options(); err != nil {
				errs = append(errs, fmt.Errorf("stores[%d] %q: comparison: %w", i, s.Name, err))
			}
		}
	}

	for i, c := range cfg.Computed {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("computed[%d]: name is required", i))
			continue
		}
		if declared[c.Name] {
			errs = append(errs, fmt.Errorf("computed[%d]: duplicate name %q", i, c.Name))
		}
		if strings.TrimSpace(c.Expr) == "" {
			errs = append(errs, fmt.Errorf("computed[%d] %q: expr is required", i, c.Name))
		}
		if len(c.Deps) == 0 {
			errs = append(errs, fmt.Errorf("computed[%d] %q: at least one dependency is required", i, c.Name))
		}
		for _, d := range c.Deps {
			if !declared[d] {
				errs = append(errs, fmt.Errorf("computed[%d] %q: dependency %q is not declared before it", i, c.Name, d))
			}
		}
		if c.Comparison != nil {
			if _, err := c.Comparison.Options(); err != nil {
				errs = append(errs, fmt.Errorf("computed[%d] %q: comparison: %w", i, c.Name, err))
			}
		}
		declared[c.Name] = true
	}
	return errors.Join(errs...)
}
