// Package reducer implements the Reducer Driver (C7): staging a seed,
// emitting the interestingness predicate, invoking the external reducer
// under a wall-clock budget, and handing back the iteration's archive
// directory regardless of how the reducer exited.
package reducer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/codedensity/srcreduce/internal/debug"
	"github.com/codedensity/srcreduce/internal/predicate"
	"github.com/codedensity/srcreduce/internal/procexec"
)

// ToolConfig carries what the driver needs to stage and invoke the
// reducer.
type ToolConfig struct {
	ReducerPath        string
	CompilerPath       string
	OptFlag            string
	IncludePath        string
	ReducerPassTimeout time.Duration
}

// Driver runs one reduction per call to Reduce.
type Driver struct {
	runner  *procexec.Runner
	outRoot string // output_dir
	workDir string // shared scratch dir for predicate + staged copy + compile artifacts
}

// New creates a Driver. outputDir is RunConfig.OutputDir; workDir is a
// scratch directory (typically {outputDir}/work) the predicate script
// and its compile artifacts live in.
func New(runner *procexec.Runner, outputDir, workDir string) *Driver {
	return &Driver{runner: runner, outRoot: outputDir, workDir: workDir}
}

// WorkDir returns the shared scratch directory the predicate script,
// staged copies, and compile artifacts are written into, so the search
// loop can sweep it on exit (spec section 5).
func (d *Driver) WorkDir() string {
	return d.workDir
}

// Reduce stages seedPath for iteration i, emits the predicate, and
// invokes the reducer bounded by iterationTimeout. The archive
// directory is returned even when the reducer times out or exits
// non-zero: the predicate may already have written interesting
// candidates into it before the reducer gave up.
func (d *Driver) Reduce(ctx context.Context, seedPath string, i int, tc ToolConfig, iterationTimeout time.Duration) (string, error) {
	if err := os.MkdirAll(d.workDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}

	iterationDir := filepath.Join(d.outRoot, fmt.Sprintf("iteration-%d", i))
	if err := os.MkdirAll(iterationDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create iteration dir: %w", err)
	}

	stagedPath := filepath.Join(iterationDir, fmt.Sprintf("init_%d.c", i))
	if err := copyFile(seedPath, stagedPath); err != nil {
		return "", fmt.Errorf("failed to stage seed: %w", err)
	}

	// The reducer rewrites its input's own directory in place and
	// expects #line markers relative to its cwd; stage a sibling copy
	// in the shared working directory so it sees a plain basename
	// instead of the iteration-N/ prefix. creduce is only ever pointed
	// at siblingName, so it alone gets rewritten in place.
	siblingName := fmt.Sprintf("init_%d.c", i)
	siblingPath := filepath.Join(d.workDir, siblingName)
	if err := copyFile(seedPath, siblingPath); err != nil {
		return "", fmt.Errorf("failed to stage sibling copy: %w", err)
	}

	// A second, untouched copy of the seed that the reducer never sees,
	// so the predicate's binary-size gate compares the current
	// reduction against the original seed rather than against itself
	// (spec section 4.6 step 4; original_source/main.py:358-359 compiles
	// orig.o from the fixed seed path, not the in-place-reduced one).
	origName := fmt.Sprintf("orig_%d.c", i)
	origPath := filepath.Join(d.workDir, origName)
	if err := copyFile(seedPath, origPath); err != nil {
		return "", fmt.Errorf("failed to stage original seed copy: %w", err)
	}

	if _, err := predicate.Emit(d.workDir, predicate.Params{
		SeedPath:            origName,
		CandidateBasename:   siblingName,
		CompilerPath:        tc.CompilerPath,
		OptFlag:             tc.OptFlag,
		IncludePath:         tc.IncludePath,
		IterationArchiveDir: iterationDir,
	}); err != nil {
		return "", fmt.Errorf("failed to emit predicate: %w", err)
	}

	argv := []string{
		tc.ReducerPath,
		predicate.ScriptName,
		siblingName,
		"--save-temps",
		"--timeout", strconv.Itoa(int(tc.ReducerPassTimeout.Seconds())),
	}

	_, err := d.runner.Run(ctx, d.workDir, argv, iterationTimeout, procexec.Discard)
	if err == procexec.ErrTimedOut {
		debug.Printf("reducer timed out on iteration %d, using archive as-is", i)
	} else if err != nil {
		debug.Warnf("reducer invocation failed on iteration %d: %v", i, err)
	}

	return iterationDir, nil
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
