// Package batch implements the Batch Sweep Driver (C9): repeating a
// search run across a parameter grid and recording one CSV row per
// trial. It is layered entirely on top of internal/search.Loop and
// never changes its semantics; it only overrides RunConfig fields
// between trials and gives each trial its own output directory.
//
// This is recovered from the batch-measurement mode in the original
// srcreduce tool, which the distilled spec calls "a trivial wrapper...
// not specified beyond their inputs to the core" — grid shapes and
// trial counts below mirror that tool's presets.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codedensity/srcreduce/internal/config"
	"github.com/codedensity/srcreduce/internal/debug"
	"github.com/codedensity/srcreduce/internal/search"
)

func secondsOf(n int) time.Duration { return time.Duration(n) * time.Second }

// Kind names one of the supported sweep grids.
type Kind string

const (
	Complexity   Kind = "complexity"
	Optimization Kind = "optimizations"
	Timeout      Kind = "timeout"
	Single       Kind = "single"
)

// Valid reports whether k is one of the four recognized sweep kinds.
func (k Kind) Valid() bool {
	switch k {
	case Complexity, Optimization, Timeout, Single:
		return true
	}
	return false
}

// point is one grid entry: a human label plus the RunConfig mutation
// it applies.
type point struct {
	label string
	apply func(*config.RunConfig)
}

var complexityGrid = []point{
	{"Low", func(c *config.RunConfig) { c.Shape = config.GeneratorShape{MaxExprComplexity: 5, MaxBlockDepth: 2, StopByStmt: 50} }},
	{"Medium", func(c *config.RunConfig) { c.Shape = config.GeneratorShape{MaxExprComplexity: 10, MaxBlockDepth: 5, StopByStmt: 100} }},
	{"High", func(c *config.RunConfig) { c.Shape = config.GeneratorShape{MaxExprComplexity: 15, MaxBlockDepth: 8, StopByStmt: 150} }},
}

var optimizationGrid = []point{
	{"O0", func(c *config.RunConfig) { c.OptFlag = config.OptO0 }},
	{"O1", func(c *config.RunConfig) { c.OptFlag = config.OptO1 }},
	{"O2", func(c *config.RunConfig) { c.OptFlag = config.OptO2 }},
	{"O3", func(c *config.RunConfig) { c.OptFlag = config.OptO3 }},
}

var timeoutGrid = []point{
	{"5", func(c *config.RunConfig) { setTimeouts(c, 5, 25) }},
	{"10", func(c *config.RunConfig) { setTimeouts(c, 10, 50) }},
	{"15", func(c *config.RunConfig) { setTimeouts(c, 15, 75) }},
	{"20", func(c *config.RunConfig) { setTimeouts(c, 20, 100) }},
	{"25", func(c *config.RunConfig) { setTimeouts(c, 25, 125) }},
}

func setTimeouts(c *config.RunConfig, passSeconds, iterationSeconds int) {
	c.ReducerPassTimeout = secondsOf(passSeconds)
	c.ReducerIterationTimeout = secondsOf(iterationSeconds)
}

// Row is one completed trial, written verbatim as a CSV record of
// "type,size,category". Size is the trial's best heuristic value
// (text bytes per source byte), matching the "size" column the
// original batch tool reported per run.
type Row struct {
	Type     string
	Size     float64
	Category string
}

// Runner executes one search.Loop trial; production code supplies
// search.New wrapped in a thin closure, tests supply a fake.
type Runner interface {
	Run(ctx context.Context, cfg config.RunConfig) (*search.GlobalBest, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cfg config.RunConfig) (*search.GlobalBest, error)

func (f RunnerFunc) Run(ctx context.Context, cfg config.RunConfig) (*search.GlobalBest, error) {
	return f(ctx, cfg)
}

// Sweep drives trialsPerPoint runs of base (with per-point overrides
// applied) for every point in kind's grid, writing one Row per
// completed trial to csvPath as it finishes. Single has no grid: it
// runs the unmodified base config trialsPerPoint times under the
// category "baseline".
func Sweep(ctx context.Context, runner Runner, kind Kind, base config.RunConfig, trialsPerPoint int, outputRoot, csvPath string) ([]Row, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown sweep kind %q", kind)
	}

	f, err := os.Create(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"type", "size", "category"}); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	grid := gridFor(kind)
	var rows []Row

	for _, p := range grid {
		for n := 0; n < trialsPerPoint; n++ {
			cfg := base
			p.apply(&cfg)
			cfg.OutputDir = filepath.Join(outputRoot, fmt.Sprintf("%s-%s-%d", kind, p.label, n))

			row, err := runTrial(ctx, runner, cfg, string(kind), p.label)
			if err != nil {
				return rows, err
			}
			rows = append(rows, row)
			if err := w.Write([]string{row.Type, fmt.Sprint(row.Size), row.Category}); err != nil {
				return rows, fmt.Errorf("failed to write csv row: %w", err)
			}
			w.Flush()
			debug.Printf("batch: %s/%s trial %d best=%f", kind, p.label, n, row.Size)
		}
	}

	if err := w.Error(); err != nil {
		return rows, fmt.Errorf("csv writer error: %w", err)
	}
	return rows, nil
}

func gridFor(kind Kind) []point {
	switch kind {
	case Complexity:
		return complexityGrid
	case Optimization:
		return optimizationGrid
	case Timeout:
		return timeoutGrid
	case Single:
		return []point{{"baseline", func(*config.RunConfig) {}}}
	}
	return nil
}

// runTrial runs one trial and converts its GlobalBest into a Row. A
// trial with no defined best (no candidate was scored at all) still
// produces a row with size 0 rather than being dropped, so the
// CSV always has one row per attempted trial.
func runTrial(ctx context.Context, runner Runner, cfg config.RunConfig, sweepType, category string) (Row, error) {
	best, err := runner.Run(ctx, cfg)
	if err != nil {
		return Row{}, err
	}
	if best == nil || !best.Defined {
		return Row{Type: sweepType, Size: 0, Category: category}, nil
	}
	return Row{Type: sweepType, Size: best.Score, Category: category}, nil
}
