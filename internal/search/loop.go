package search

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codedensity/srcreduce/internal/config"
	"github.com/codedensity/srcreduce/internal/debug"
	srcerrors "github.com/codedensity/srcreduce/internal/errors"
	"github.com/codedensity/srcreduce/internal/reducer"
	"github.com/codedensity/srcreduce/internal/sanitize"
	"github.com/codedensity/srcreduce/internal/seedgen"
	"github.com/codedensity/srcreduce/internal/sizer"
)

// The interfaces below intentionally mirror each component package's
// concrete type signatures so the real implementations satisfy them
// without adapters, while tests can supply lightweight fakes.

// SanitizerGate is the subset of sanitize.Gate the loop depends on.
type SanitizerGate interface {
	IsClean(ctx context.Context, path string, tc sanitize.ToolConfig) bool
}

// Scorer is the subset of scorer.Scorer the loop depends on.
type Scorer interface {
	Score(ctx context.Context, seedPath, candPath string, tc sizer.ToolConfig) (float64, error)
}

// Sizer is the subset of sizer.Sizer the loop depends on, used only for
// telemetry (reporting source/text bytes of the iteration and run
// best), not for gating.
type Sizer interface {
	SourceSize(path string) (uint64, error)
	BinaryTextSize(ctx context.Context, path string, tc sizer.ToolConfig) (uint64, error)
}

// ReducerDriver is the subset of reducer.Driver the loop depends on.
type ReducerDriver interface {
	Reduce(ctx context.Context, seedPath string, i int, tc reducer.ToolConfig, iterationTimeout time.Duration) (string, error)
	WorkDir() string
}

// Deduper is the subset of dedupe.Seen the loop depends on. A nil
// Deduper in Deps disables deduplication entirely.
type Deduper interface {
	CheckAndAdd(path string) (bool, error)
}

// SeedSource is the subset of seedgen.Generator the loop depends on.
type SeedSource interface {
	NewSeed(ctx context.Context, generatorPath string, shape seedgen.Shape, tc sanitize.ToolConfig, outputDir string, seedIndex int) (string, error)
	FromExample(path string) (string, error)
}

// Deps bundles every external collaborator the loop orchestrates.
type Deps struct {
	SeedSource SeedSource
	Gate       SanitizerGate
	Scorer     Scorer
	Sizer      Sizer
	Reducer    ReducerDriver
	Dedupe     Deduper // nil disables deduplication
}

// Loop drives the iterative search described in spec section 4.8.
type Loop struct {
	cfg  config.RunConfig
	deps Deps
	tel  *debug.Telemetry
}

// New creates a Loop ready to Run.
func New(cfg config.RunConfig, deps Deps) *Loop {
	return &Loop{cfg: cfg, deps: deps, tel: debug.NewTelemetry()}
}

// Run executes the search to completion: it halts when the Frontier
// empties with regeneration disabled, when overall_timeout elapses, or
// when max_iterations is reached. On a defined GlobalBest it writes
// {output_dir}/last.c and returns the best; otherwise it returns a
// GlobalBest with Defined false and no error. A cancelled ctx stops the
// loop at the top of the next iteration.
func (l *Loop) Run(ctx context.Context) (*GlobalBest, error) {
	if err := l.prepareOutputDir(); err != nil {
		return nil, err
	}
	defer cleanupWorkDir(l.deps.Reducer.WorkDir())

	frontier := NewFrontier()
	var best GlobalBest
	seedCounter := 0
	iteration := 0
	start := time.Now()

	sanitizeTC := l.sanitizeToolConfig()
	sizeTC := l.sizeToolConfig()
	reducerTC := l.reducerToolConfig()

	firstSeed, err := l.firstSeed(ctx, seedCounter, sanitizeTC)
	if err != nil {
		return nil, err
	}
	frontier.Push(Candidate{Score: 0, Path: firstSeed, RootSeed: firstSeed})

	for time.Since(start) < l.cfg.OverallTimeout && iteration < l.cfg.MaxIterations {
		if ctx.Err() != nil {
			debug.Printf("search cancelled after %d iterations", iteration)
			break
		}
		if frontier.Len() == 0 {
			if !l.cfg.RegenerateOnEmpty {
				break
			}
			seedCounter++
			seed, err := l.deps.SeedSource.NewSeed(ctx, l.cfg.GeneratorPath, l.shape(), sanitizeTC, l.cfg.OutputDir, seedCounter)
			if err != nil {
				return nil, err
			}
			debug.Printf("no candidates left, generated new seed %s", seed)
			frontier.Push(Candidate{Score: 0, Path: seed, RootSeed: seed})
		}

		popped, ok := frontier.Pop()
		if !ok {
			break
		}
		iteration++
		l.tel.Iteration(iteration)

		archiveDir, err := l.deps.Reducer.Reduce(ctx, popped.Path, iteration, reducerTC, l.cfg.ReducerIterationTimeout)
		if err != nil {
			return nil, srcerrors.NewFilesystemError("reduce", archiveDir, err)
		}

		entries, err := listCSources(archiveDir)
		if err != nil {
			return nil, srcerrors.NewFilesystemError("readdir", archiveDir, err)
		}

		var iterationBest *Candidate
		for _, candPath := range entries {
			if l.deps.Dedupe != nil {
				isNew, err := l.deps.Dedupe.CheckAndAdd(candPath)
				if err == nil && !isNew {
					continue
				}
			}

			if !l.deps.Gate.IsClean(ctx, candPath, sanitizeTC) {
				continue
			}

			score, err := l.deps.Scorer.Score(ctx, popped.Path, candPath, sizeTC)
			if err != nil {
				debug.Debugf("skipping unscorable candidate %s: %v", candPath, err)
				continue
			}

			cand := Candidate{Score: score, Path: candPath, RootSeed: popped.RootSeed}
			frontier.Push(cand)

			if iterationBest == nil || cand.Score > iterationBest.Score {
				c := cand
				iterationBest = &c
			}
		}

		if iterationBest == nil {
			l.tel.NoNewCandidates(iteration)
			continue
		}

		srcBytes, textBytes := l.measure(ctx, iterationBest.Path, sizeTC)
		l.tel.BestThisIteration(iterationBest.Path, iterationBest.Score, srcBytes, textBytes)

		best.update(*iterationBest)
	}

	if best.Defined {
		lastPath := filepath.Join(l.cfg.OutputDir, "last.c")
		if err := copyFile(best.Path, lastPath); err != nil {
			return nil, srcerrors.NewFilesystemError("write", lastPath, err)
		}
		srcBytes, textBytes := l.measure(ctx, best.Path, sizeTC)
		debug.Printf("final best %s: score=%f source=%d text=%d", best.Path, best.Score, srcBytes, textBytes)
	}

	return &best, nil
}

func (l *Loop) firstSeed(ctx context.Context, seedIndex int, tc sanitize.ToolConfig) (string, error) {
	if l.cfg.Random {
		return l.deps.SeedSource.NewSeed(ctx, l.cfg.GeneratorPath, l.shape(), tc, l.cfg.OutputDir, seedIndex)
	}
	return l.deps.SeedSource.FromExample(l.cfg.ExamplePath)
}

func (l *Loop) shape() seedgen.Shape {
	return seedgen.Shape{
		MaxExprComplexity: l.cfg.Shape.MaxExprComplexity,
		MaxBlockDepth:     l.cfg.Shape.MaxBlockDepth,
		StopByStmt:        l.cfg.Shape.StopByStmt,
		Seed:              l.cfg.Shape.Seed,
	}
}

func (l *Loop) measure(ctx context.Context, path string, tc sizer.ToolConfig) (uint64, uint64) {
	src, err := l.deps.Sizer.SourceSize(path)
	if err != nil {
		return 0, 0
	}
	text, err := l.deps.Sizer.BinaryTextSize(ctx, path, tc)
	if err != nil {
		return src, 0
	}
	return src, text
}

func (l *Loop) prepareOutputDir() error {
	if err := os.RemoveAll(l.cfg.OutputDir); err != nil {
		return srcerrors.NewFilesystemError("cleanup", l.cfg.OutputDir, err)
	}
	if err := os.MkdirAll(l.cfg.OutputDir, 0o755); err != nil {
		return srcerrors.NewFilesystemError("mkdir", l.cfg.OutputDir, err)
	}
	return nil
}

func (l *Loop) sanitizeToolConfig() sanitize.ToolConfig {
	return sanitize.ToolConfig{CompilerPath: l.cfg.CompilerPath, IncludePath: l.cfg.IncludePath}
}

func (l *Loop) sizeToolConfig() sizer.ToolConfig {
	return sizer.ToolConfig{
		CompilerPath: l.cfg.CompilerPath,
		SizeToolPath: l.cfg.SizeToolPath,
		OptFlag:      l.cfg.OptFlag.CCFlag(),
		IncludePath:  l.cfg.IncludePath,
	}
}

func (l *Loop) reducerToolConfig() reducer.ToolConfig {
	return reducer.ToolConfig{
		ReducerPath:        l.cfg.ReducerPath,
		CompilerPath:       l.cfg.CompilerPath,
		OptFlag:            l.cfg.OptFlag.CCFlag(),
		IncludePath:        l.cfg.IncludePath,
		ReducerPassTimeout: l.cfg.ReducerPassTimeout,
	}
}

// cleanupWorkDir sweeps the reducer's shared scratch directory of every
// *.c and *.orig dropping (the staged init_N.c and orig_N.c seed
// copies, creduce's own .orig backups) on every exit path from Run, per
// spec section 5 and section 3's SourceArtifact note. It leaves
// compile artifacts (orig.o, tmp.o) and the predicate script itself
// alone; those are overwritten every iteration and carry no state
// worth preserving, but are not part of the sweep's contract. Errors
// are not fatal: cleanup is best-effort housekeeping, not part of the
// search's correctness.
func cleanupWorkDir(dir string) {
	if dir == "" {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".c") || strings.HasSuffix(name, ".orig") {
			os.Remove(filepath.Join(dir, name))
		}
	}
}

func listCSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".c") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
