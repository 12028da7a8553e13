// Package config loads the §6 runtime configuration: an optional YAML
// file layered under CLI flag overrides, grounded on
// roach88-nysm/brutalist/internal/harness.Scenario's yaml-tagged struct
// loaded with yaml.Unmarshal.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/hvm-core/hvmc/internal/numeric"
)

// Config holds every option spec.md §6 recognizes.
type Config struct {
	HeapSize            int    `yaml:"heap_size"`
	Workers             int    `yaml:"workers"`
	RedexBudgetPerSteal int    `yaml:"redex_budget_per_steal"`
	NumericOverflow     string `yaml:"numeric_overflow"`
	Trace               bool   `yaml:"trace"`

	// MaxLinkDepth is spec.md §4.I's "configured guard" on rule-dispatch
	// recursion depth; 0 keeps netrt's built-in default.
	MaxLinkDepth int `yaml:"max_link_depth"`
}

// Default returns the §6 defaults: workers=0 (meaning one per hardware
// thread, resolved by ResolvedWorkers), numeric_overflow=wrap.
func Default() Config {
	return Config{
		HeapSize:            1 << 20,
		Workers:             0,
		RedexBudgetPerSteal: 0,
		NumericOverflow:     "wrap",
	}
}

// Load reads a YAML config file at path and merges it over Default(),
// mirroring harness.Scenario's yaml.Unmarshal-into-struct pattern. A
// missing path is not an error: the caller gets the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvedWorkers returns Workers, substituting runtime.NumCPU() for the
// §6 "0 means one per hardware thread" sentinel.
func (c Config) ResolvedWorkers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// Overflow parses NumericOverflow into a numeric.OverflowMode, defaulting
// to Wrap on an empty or unrecognized value.
func (c Config) Overflow() numeric.OverflowMode {
	mode, ok := numeric.ParseOverflowMode(c.NumericOverflow)
	if !ok {
		return numeric.Wrap
	}
	return mode
}
