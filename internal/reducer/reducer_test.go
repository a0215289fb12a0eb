package reducer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedensity/srcreduce/internal/procexec"
)

func TestReduceStagesAndReturnsArchiveDir(t *testing.T) {
	outDir := t.TempDir()
	workDir := t.TempDir()

	seed := filepath.Join(t.TempDir(), "seed.c")
	require.NoError(t, os.WriteFile(seed, []byte("int main(){return 0;}"), 0o644))

	// A fake reducer that exits 0 without running the predicate or
	// archiving anything; the test checks only the staged copies and
	// the emitted predicate script.
	fakeReducer := filepath.Join(t.TempDir(), "reduce.sh")
	require.NoError(t, os.WriteFile(fakeReducer, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	d := New(procexec.New(), outDir, workDir)
	archiveDir, err := d.Reduce(context.Background(), seed, 1, ToolConfig{
		ReducerPath:        fakeReducer,
		CompilerPath:       "cc",
		ReducerPassTimeout: time.Second,
	}, 5*time.Second)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "iteration-1"), archiveDir)
	assert.FileExists(t, filepath.Join(archiveDir, "init_1.c"))
	assert.FileExists(t, filepath.Join(workDir, "init_1.c"))
	assert.FileExists(t, filepath.Join(workDir, "orig_1.c"))
	assert.FileExists(t, filepath.Join(workDir, "interestingness_test.sh"))

	script, err := os.ReadFile(filepath.Join(workDir, "interestingness_test.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(script), "orig_1.c -o orig.o",
		"the predicate must compile orig.o from the untouched seed copy, not the reducer's in-place-rewritten file")
	assert.Contains(t, string(script), "init_1.c -o tmp.o",
		"the predicate must compile tmp.o from the file creduce actually rewrites")
}

func TestReduceSurvivesIterationTimeout(t *testing.T) {
	outDir := t.TempDir()
	workDir := t.TempDir()

	seed := filepath.Join(t.TempDir(), "seed.c")
	require.NoError(t, os.WriteFile(seed, []byte("int main(){return 0;}"), 0o644))

	slowReducer := filepath.Join(t.TempDir(), "reduce.sh")
	require.NoError(t, os.WriteFile(slowReducer, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	d := New(procexec.New(), outDir, workDir)
	archiveDir, err := d.Reduce(context.Background(), seed, 2, ToolConfig{
		ReducerPath:        slowReducer,
		CompilerPath:       "cc",
		ReducerPassTimeout: time.Second,
	}, 100*time.Millisecond)

	require.NoError(t, err)
	assert.DirExists(t, archiveDir)
}
