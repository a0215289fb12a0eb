// Package seedgen implements the Seed Generator (C4): producing a
// fresh random C program via an external generator, rejection-sampling
// against the Sanitizer Gate until one passes, or reading a configured
// example file verbatim.
package seedgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/codedensity/srcreduce/internal/procexec"
	"github.com/codedensity/srcreduce/internal/sanitize"
)

const generateTimeout = 10 * time.Second

// Shape bundles the generator-shape flags forwarded on the command
// line.
type Shape struct {
	MaxExprComplexity int
	MaxBlockDepth     int
	StopByStmt        int
	Seed              int64
}

// SanitizerGate is the subset of sanitize.Gate the generator needs; an
// interface so tests can stub rejection behavior deterministically.
type SanitizerGate interface {
	IsClean(ctx context.Context, path string, tc sanitize.ToolConfig) bool
}

// Generator produces seed files under outputDir.
type Generator struct {
	runner *procexec.Runner
	gate   SanitizerGate
}

// New creates a Generator.
func New(runner *procexec.Runner, gate SanitizerGate) *Generator {
	return &Generator{runner: runner, gate: gate}
}

// NewSeed synthesizes a generator invocation from shape, captures
// stdout as the candidate program, and rejects-and-retries indefinitely
// (bounded only by ctx) while the Sanitizer Gate rejects it. The
// accepted program is written to {outputDir}/init{seedIndex}.c.
func (g *Generator) NewSeed(ctx context.Context, generatorPath string, shape Shape, tc sanitize.ToolConfig, outputDir string, seedIndex int) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		source, err := g.generateOnce(ctx, generatorPath, shape)
		if err != nil {
			return "", err
		}

		path := filepath.Join(outputDir, fmt.Sprintf("init%d.c", seedIndex))
		if err := os.WriteFile(path, source, 0o644); err != nil {
			return "", err
		}

		if g.gate.IsClean(ctx, path, tc) {
			return path, nil
		}
	}
}

// FromExample reads an example source file once and returns its path
// unchanged. The Sanitizer Gate is never applied to examples, per the
// spec.
func (g *Generator) FromExample(path string) (string, error) {
	if _, err := os.ReadFile(path); err != nil {
		return "", err
	}
	return path, nil
}

func (g *Generator) generateOnce(ctx context.Context, generatorPath string, shape Shape) ([]byte, error) {
	argv := []string{
		generatorPath,
		"--max-expr-complexity=" + strconv.Itoa(shape.MaxExprComplexity),
		"--max-block-depth=" + strconv.Itoa(shape.MaxBlockDepth),
		"--stop-by-stmt=" + strconv.Itoa(shape.StopByStmt),
		"--seed=" + strconv.FormatInt(shape.Seed, 10),
	}

	res, err := g.runner.Run(ctx, "", argv, generateTimeout, procexec.Capture)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("generator exited %d", res.ExitCode)
	}
	return res.Stdout, nil
}
