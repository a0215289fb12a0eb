package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKDLMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadKDL(filepath.Join(t.TempDir(), "missing.kdl"))
	require.NoError(t, err)
	assert.Equal(t, Default().MaxIterations, cfg.MaxIterations)
}

func TestLoadKDLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".srcreduce.kdl")
	contents := `
tools {
    generator "/usr/bin/csmith"
    reducer "/usr/bin/creduce"
    compiler "/usr/bin/cc"
    include "/usr/include/csmith"
}
compiler-flag "O2"
shape {
    max-expr-complexity 15
    max-block-depth 8
    stop-by-stmt 150
    seed 42
}
timeouts {
    overall 600
    reducer-pass 3
    reducer-iteration 20
}
max-iterations 100
regenerate #true
dedupe-candidates #true
output "/tmp/out"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadKDL(path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/csmith", cfg.GeneratorPath)
	assert.Equal(t, "/usr/bin/creduce", cfg.ReducerPath)
	assert.Equal(t, OptO2, cfg.OptFlag)
	assert.Equal(t, 15, cfg.Shape.MaxExprComplexity)
	assert.Equal(t, int64(42), cfg.Shape.Seed)
	assert.Equal(t, 600*time.Second, cfg.OverallTimeout)
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.True(t, cfg.RegenerateOnEmpty)
	assert.True(t, cfg.DedupeCandidates)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
}
