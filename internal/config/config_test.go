package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hvm-core/hvmc/internal/numeric"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, 0, cfg.Workers)
	require.Equal(t, "wrap", cfg.NumericOverflow)
	require.Equal(t, numeric.Wrap, cfg.Overflow())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hvmc.yaml")
	yaml := "heap_size: 4096\nworkers: 8\nredex_budget_per_steal: 64\nnumeric_overflow: trap\ntrace: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4096, cfg.HeapSize)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, 64, cfg.RedexBudgetPerSteal)
	require.Equal(t, numeric.Trap, cfg.Overflow())
	require.True(t, cfg.Trace)
}

func TestResolvedWorkersFallsBackToNumCPU(t *testing.T) {
	cfg := Default()
	require.Greater(t, cfg.ResolvedWorkers(), 0)

	cfg.Workers = 3
	require.Equal(t, 3, cfg.ResolvedWorkers())
}

func TestOverflowDefaultsToWrapOnGarbageValue(t *testing.T) {
	cfg := Default()
	cfg.NumericOverflow = "not-a-real-mode"
	require.Equal(t, numeric.Wrap, cfg.Overflow())
}
