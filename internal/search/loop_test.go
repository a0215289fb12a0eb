package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codedensity/srcreduce/internal/config"
	"github.com/codedensity/srcreduce/internal/reducer"
	"github.com/codedensity/srcreduce/internal/sanitize"
	"github.com/codedensity/srcreduce/internal/seedgen"
	"github.com/codedensity/srcreduce/internal/sizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSeedSource writes a trivial, deterministically-named seed file
// each time it is asked for one, and counts how many times it was
// asked for a fresh random seed (as opposed to the fixed example).
type fakeSeedSource struct {
	dir         string
	examplePath string
	randomCalls int
}

func (f *fakeSeedSource) NewSeed(ctx context.Context, generatorPath string, shape seedgen.Shape, tc sanitize.ToolConfig, outputDir string, seedIndex int) (string, error) {
	f.randomCalls++
	path := filepath.Join(f.dir, fmt.Sprintf("seed%d.c", seedIndex))
	if err := os.WriteFile(path, []byte(fmt.Sprintf("int main(){return %d;}", seedIndex)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeSeedSource) FromExample(path string) (string, error) {
	return f.examplePath, nil
}

// fakeGate accepts everything.
type fakeGate struct{}

func (fakeGate) IsClean(ctx context.Context, path string, tc sanitize.ToolConfig) bool { return true }

// fakeScorer returns a score looked up by exact candidate path,
// falling back to 1.0, giving tests a deterministic improvement signal
// without touching a real compiler.
type fakeScorer struct {
	scores map[string]float64
}

func (f *fakeScorer) Score(ctx context.Context, seedPath, candPath string, tc sizer.ToolConfig) (float64, error) {
	if s, ok := f.scores[candPath]; ok {
		return s, nil
	}
	return 1.0, nil
}

// fakeSizer reports fixed, non-zero sizes so telemetry calls succeed.
type fakeSizer struct{}

func (fakeSizer) SourceSize(path string) (uint64, error) { return 100, nil }
func (fakeSizer) BinaryTextSize(ctx context.Context, path string, tc sizer.ToolConfig) (uint64, error) {
	return 200, nil
}

// fakeReducer archives a fixed set of candidate files into a fresh
// iteration directory under its root, ignoring the seed it is handed.
type fakeReducer struct {
	root         string
	workDir      string
	candidates   [][]string // candidates[i] are the basenames archived on the i-th call (1-indexed)
	calls        int
	sleepPerCall time.Duration
}

func (f *fakeReducer) WorkDir() string { return f.workDir }

func (f *fakeReducer) Reduce(ctx context.Context, seedPath string, i int, tc reducer.ToolConfig, iterationTimeout time.Duration) (string, error) {
	f.calls++
	if f.sleepPerCall > 0 {
		select {
		case <-time.After(f.sleepPerCall):
		case <-ctx.Done():
		}
	}
	dir := filepath.Join(f.root, fmt.Sprintf("iteration-%d", i))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dir, err
	}
	var names []string
	if i-1 < len(f.candidates) {
		names = f.candidates[i-1]
	}
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("int main(){return 0;}"), 0o644); err != nil {
			return dir, err
		}
	}
	return dir, nil
}

func baseConfig(t *testing.T, outputDir string) config.RunConfig {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = outputDir
	cfg.MaxIterations = 10
	cfg.OverallTimeout = 5 * time.Second
	cfg.Random = true
	return cfg
}

func TestRunRegeneratesExactlyOneSeedWhenFrontierEmpties(t *testing.T) {
	outDir := t.TempDir()
	reducerRoot := t.TempDir()

	cfg := baseConfig(t, outDir)
	cfg.RegenerateOnEmpty = true
	cfg.MaxIterations = 2

	seeds := &fakeSeedSource{dir: t.TempDir()}
	red := &fakeReducer{root: reducerRoot} // no candidates archived, ever

	l := New(cfg, Deps{
		SeedSource: seeds,
		Gate:       fakeGate{},
		Scorer:     &fakeScorer{},
		Sizer:      fakeSizer{},
		Reducer:    red,
	})

	best, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, best.Defined, "no candidate ever scored, so no GlobalBest should be defined")

	// One seed consumed by the initial frontier push, one more
	// generated when the frontier emptied after the first pop.
	assert.Equal(t, 2, seeds.randomCalls)
}

func TestRunHaltsOnOverallTimeoutAndWritesLastOnlyIfScored(t *testing.T) {
	outDir := t.TempDir()
	reducerRoot := t.TempDir()

	cfg := baseConfig(t, outDir)
	cfg.RegenerateOnEmpty = true
	cfg.MaxIterations = 1_000_000
	cfg.OverallTimeout = 120 * time.Millisecond

	seeds := &fakeSeedSource{dir: t.TempDir()}
	red := &fakeReducer{root: reducerRoot, sleepPerCall: 30 * time.Millisecond}

	l := New(cfg, Deps{
		SeedSource: seeds,
		Gate:       fakeGate{},
		Scorer:     &fakeScorer{},
		Sizer:      fakeSizer{},
		Reducer:    red,
	})

	start := time.Now()
	best, err := l.Run(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, best.Defined)
	assert.Less(t, elapsed, 2*time.Second, "loop must halt near overall_timeout, not run unbounded")

	lastPath := filepath.Join(outDir, "last.c")
	_, statErr := os.Stat(lastPath)
	assert.True(t, os.IsNotExist(statErr), "last.c must not be written when GlobalBest was never defined")
}

func TestRunUpdatesGlobalBestOnImprovingCandidateAndWritesLast(t *testing.T) {
	outDir := t.TempDir()
	reducerRoot := t.TempDir()

	cfg := baseConfig(t, outDir)
	cfg.RegenerateOnEmpty = false
	cfg.MaxIterations = 3

	seeds := &fakeSeedSource{dir: t.TempDir()}
	red := &fakeReducer{
		root: reducerRoot,
		candidates: [][]string{
			{"cand_a.c"},
			{"cand_b.c"},
		},
	}
	scores := &fakeScorer{scores: map[string]float64{}}

	l := New(cfg, Deps{
		SeedSource: seeds,
		Gate:       fakeGate{},
		Scorer:     scores,
		Sizer:      fakeSizer{},
		Reducer:    red,
	})

	// Fill in scores referencing the exact archive paths the fake
	// reducer will produce.
	scores.scores[filepath.Join(reducerRoot, "iteration-1", "cand_a.c")] = 0.5
	scores.scores[filepath.Join(reducerRoot, "iteration-2", "cand_b.c")] = 0.9

	best, err := l.Run(context.Background())
	require.NoError(t, err)
	require.True(t, best.Defined)
	assert.Equal(t, 0.9, best.Score)

	lastPath := filepath.Join(outDir, "last.c")
	content, err := os.ReadFile(lastPath)
	require.NoError(t, err)
	assert.Equal(t, "int main(){return 0;}", string(content))
}

func TestRunSweepsWorkDirOfCAndOrigFilesOnExit(t *testing.T) {
	outDir := t.TempDir()
	reducerRoot := t.TempDir()
	workDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "init_1.c"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "init_1.c.orig"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "orig_1.c"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "tmp.o"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "interestingness_test.sh"), []byte("x"), 0o755))

	cfg := baseConfig(t, outDir)
	cfg.RegenerateOnEmpty = false
	cfg.MaxIterations = 1

	seeds := &fakeSeedSource{dir: t.TempDir()}
	red := &fakeReducer{root: reducerRoot, workDir: workDir}

	l := New(cfg, Deps{
		SeedSource: seeds,
		Gate:       fakeGate{},
		Scorer:     &fakeScorer{},
		Sizer:      fakeSizer{},
		Reducer:    red,
	})

	_, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(workDir, "init_1.c"))
	assert.NoFileExists(t, filepath.Join(workDir, "init_1.c.orig"))
	assert.NoFileExists(t, filepath.Join(workDir, "orig_1.c"))
	assert.FileExists(t, filepath.Join(workDir, "tmp.o"), "non-.c/.orig artifacts are left alone")
	assert.FileExists(t, filepath.Join(workDir, "interestingness_test.sh"))
}

func TestRunStopsWhenFrontierEmptiesAndRegenerationDisabled(t *testing.T) {
	outDir := t.TempDir()
	reducerRoot := t.TempDir()

	cfg := baseConfig(t, outDir)
	cfg.RegenerateOnEmpty = false
	cfg.MaxIterations = 100

	seeds := &fakeSeedSource{dir: t.TempDir()}
	red := &fakeReducer{root: reducerRoot} // archives nothing, ever

	l := New(cfg, Deps{
		SeedSource: seeds,
		Gate:       fakeGate{},
		Scorer:     &fakeScorer{},
		Sizer:      fakeSizer{},
		Reducer:    red,
	})

	best, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, best.Defined)
	assert.Equal(t, 1, red.calls, "only the single initial seed should ever be popped and reduced")
}
