package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/codedensity/srcreduce/internal/batch"
	"github.com/codedensity/srcreduce/internal/config"
	"github.com/codedensity/srcreduce/internal/debug"
	"github.com/codedensity/srcreduce/internal/dedupe"
	"github.com/codedensity/srcreduce/internal/procexec"
	"github.com/codedensity/srcreduce/internal/reducer"
	"github.com/codedensity/srcreduce/internal/sanitize"
	"github.com/codedensity/srcreduce/internal/scorer"
	"github.com/codedensity/srcreduce/internal/search"
	"github.com/codedensity/srcreduce/internal/seedgen"
	"github.com/codedensity/srcreduce/internal/sizer"
	"github.com/codedensity/srcreduce/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "srcreduce",
		Usage:   "search for a low-density C source that maximizes binary-to-source ratio",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: ".srcreduce.kdl", Usage: "path to a KDL run config"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output directory for iteration archives and last.c"},
			&cli.IntFlag{Name: "timeout", Usage: "overall search budget in seconds"},
			&cli.IntFlag{Name: "timeout-creduce", Usage: "per-pass reducer timeout in seconds"},
			&cli.IntFlag{Name: "timeout-creduce-iteration", Usage: "per-iteration reducer wall-clock budget in seconds"},
			&cli.IntFlag{Name: "max-iterations", Usage: "maximum number of frontier pops"},
			&cli.BoolFlag{Name: "random", Usage: "generate a fresh random seed instead of an example"},
			&cli.StringFlag{Name: "example", Usage: "path to a fixed example source to use as the single seed"},
			&cli.StringFlag{Name: "csmith", Usage: "path to the random C generator binary"},
			&cli.StringFlag{Name: "csmith-include", Usage: "include directory the generated and candidate sources need"},
			&cli.StringFlag{Name: "creduce", Usage: "path to the program reducer binary"},
			&cli.StringFlag{Name: "compiler", Usage: "path to the C compiler"},
			&cli.StringFlag{Name: "size-tool", Usage: "path to the size-reporting tool"},
			&cli.StringFlag{Name: "compiler-flag", Usage: "optimization level: none, O0, O1, O2, O3"},
			&cli.IntFlag{Name: "max-expr-complexity", Usage: "generator shape: max expression complexity"},
			&cli.IntFlag{Name: "max-block-depth", Usage: "generator shape: max block nesting depth"},
			&cli.IntFlag{Name: "stop-by-stmt", Usage: "generator shape: statement count to stop at"},
			&cli.Int64Flag{Name: "gen-seed", Usage: "generator shape: RNG seed"},
			&cli.BoolFlag{Name: "regenerate", Usage: "generate a fresh seed when the frontier empties instead of halting"},
			&cli.BoolFlag{Name: "dedupe", Usage: "skip rescoring content-identical reducer output within a run"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug-level logging"},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:  "sweep",
				Usage: "run a batch of searches across a parameter grid, recording one CSV row per trial",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: ".srcreduce.kdl", Usage: "path to a KDL run config used as the sweep baseline"},
					&cli.StringFlag{Name: "kind", Required: true, Usage: "one of complexity, optimizations, timeout, single"},
					&cli.StringFlag{Name: "output", Value: "./srcreduce-sweep", Usage: "root directory for per-trial output"},
					&cli.StringFlag{Name: "csv", Value: "data.csv", Usage: "path to the batch measurements CSV"},
					&cli.IntFlag{Name: "trials", Value: 10, Usage: "trials per grid point (2 for single)"},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug-level logging"},
				},
				Action: runSweep,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	debug.SetVerbose(c.Bool("verbose"))

	cfg, err := config.LoadKDL(c.String("config"))
	if err != nil {
		return err
	}
	applyFlagOverrides(c, &cfg)

	if err := config.NewValidator().Validate(&cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		debug.Printf("received interrupt, stopping after the current iteration")
		cancel()
	}()

	loop, err := buildLoop(cfg)
	if err != nil {
		return err
	}

	best, err := loop.Run(ctx)
	if err != nil {
		return err
	}

	if best.Defined {
		fmt.Printf("best candidate: %s (score %f, from seed %s)\n", best.Path, best.Score, best.RootSeed)
	} else {
		fmt.Println("no candidate was scored in this run")
	}
	return nil
}

// buildLoop wires every component (§2, C1-C8) from a validated
// RunConfig. Shared by the top-level search command and the sweep
// subcommand so a sweep's per-trial loops are built identically to a
// standalone run.
func buildLoop(cfg config.RunConfig) (*search.Loop, error) {
	runner := procexec.New()
	gate := sanitize.New(runner)
	gen := seedgen.New(runner, gate)
	sz := sizer.New(runner)
	scr := scorer.New(sz)

	workDir := filepath.Join(cfg.OutputDir, "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	red := reducer.New(runner, cfg.OutputDir, workDir)

	var deduper *dedupe.Seen
	if cfg.DedupeCandidates {
		deduper = dedupe.NewSeen()
	}

	return search.New(cfg, search.Deps{
		SeedSource: gen,
		Gate:       gate,
		Scorer:     scr,
		Sizer:      sz,
		Reducer:    red,
		Dedupe:     dedupeOrNil(deduper),
	}), nil
}

// runSweep is the Action for the "sweep" subcommand (C9): it drives
// batch.Sweep over the grid named by --kind, building a fresh Loop per
// trial via buildLoop so every trial is an ordinary, independently
// configured search run.
func runSweep(c *cli.Context) error {
	debug.SetVerbose(c.Bool("verbose"))

	cfg, err := config.LoadKDL(c.String("config"))
	if err != nil {
		return err
	}
	if err := config.NewValidator().Validate(&cfg); err != nil {
		return err
	}

	kind := batch.Kind(c.String("kind"))
	if !kind.Valid() {
		return fmt.Errorf("unknown sweep kind %q: want complexity, optimizations, timeout, or single", kind)
	}

	trials := c.Int("trials")
	if kind == batch.Single && !c.IsSet("trials") {
		trials = 2
	}

	runner := batch.RunnerFunc(func(ctx context.Context, trialCfg config.RunConfig) (*search.GlobalBest, error) {
		loop, err := buildLoop(trialCfg)
		if err != nil {
			return nil, err
		}
		return loop.Run(ctx)
	})

	rows, err := batch.Sweep(context.Background(), runner, kind, cfg, trials, c.String("output"), c.String("csv"))
	if err != nil {
		return err
	}
	fmt.Printf("sweep %s complete: %d trials recorded to %s\n", kind, len(rows), c.String("csv"))
	return nil
}

// dedupeOrNil satisfies search.Deduper with a nil interface value (not a
// nil-but-typed pointer) when deduplication is disabled, so the loop's
// `l.deps.Dedupe != nil` check behaves correctly.
func dedupeOrNil(d *dedupe.Seen) search.Deduper {
	if d == nil {
		return nil
	}
	return d
}

func applyFlagOverrides(c *cli.Context, cfg *config.RunConfig) {
	if v := c.String("output"); v != "" {
		cfg.OutputDir = v
	}
	if c.IsSet("timeout") {
		cfg.OverallTimeout = secondsFlag(c, "timeout")
	}
	if c.IsSet("timeout-creduce") {
		cfg.ReducerPassTimeout = secondsFlag(c, "timeout-creduce")
	}
	if c.IsSet("timeout-creduce-iteration") {
		cfg.ReducerIterationTimeout = secondsFlag(c, "timeout-creduce-iteration")
	}
	if c.IsSet("max-iterations") {
		cfg.MaxIterations = c.Int("max-iterations")
	}
	if v := c.String("example"); v != "" {
		cfg.ExamplePath = v
		cfg.Random = false
	}
	if c.Bool("random") {
		cfg.Random = true
		cfg.ExamplePath = ""
	}
	if v := c.String("csmith"); v != "" {
		cfg.GeneratorPath = v
	}
	if v := c.String("csmith-include"); v != "" {
		cfg.IncludePath = v
	}
	if v := c.String("creduce"); v != "" {
		cfg.ReducerPath = v
	}
	if v := c.String("compiler"); v != "" {
		cfg.CompilerPath = v
	}
	if v := c.String("size-tool"); v != "" {
		cfg.SizeToolPath = v
	}
	if v := c.String("compiler-flag"); v != "" {
		cfg.OptFlag = config.OptLevel(v)
	}
	if c.IsSet("max-expr-complexity") {
		cfg.Shape.MaxExprComplexity = c.Int("max-expr-complexity")
	}
	if c.IsSet("max-block-depth") {
		cfg.Shape.MaxBlockDepth = c.Int("max-block-depth")
	}
	if c.IsSet("stop-by-stmt") {
		cfg.Shape.StopByStmt = c.Int("stop-by-stmt")
	}
	if c.IsSet("gen-seed") {
		cfg.Shape.Seed = c.Int64("gen-seed")
	}
	if c.Bool("regenerate") {
		cfg.RegenerateOnEmpty = true
	}
	if c.Bool("dedupe") {
		cfg.DedupeCandidates = true
	}
}

func secondsFlag(c *cli.Context, name string) time.Duration {
	return time.Duration(c.Int(name)) * time.Second
}
