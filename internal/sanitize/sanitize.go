// Package sanitize implements the Sanitizer Gate (C3): classifying a
// source file as "clean" by compiling it with warnings promoted and
// with the address/undefined-behavior sanitizers enabled, and checking
// for any findings. This is a hard filter — unclean sources never reach
// the Frontier or GlobalBest.
package sanitize

import (
	"context"
	"os"
	"time"

	"github.com/codedensity/srcreduce/internal/procexec"
)

const sanitizeTimeout = 15 * time.Second

// ToolConfig carries what the Gate needs to invoke the compiler twice:
// once to check for warnings, once with sanitizers enabled.
type ToolConfig struct {
	CompilerPath string
	IncludePath  string
}

// Gate classifies sources as clean or not.
type Gate struct {
	runner *procexec.Runner
}

// New creates a Gate backed by the given process runner.
func New(runner *procexec.Runner) *Gate {
	return &Gate{runner: runner}
}

// IsClean compiles path twice — once with -Wall -Wextra -Werror to
// surface compiler warnings, once with -fsanitize=address,undefined to
// surface runtime findings after a short execution — and reports true
// only if both checks pass. Any spawn failure is treated as "not
// clean": an unscorable candidate should never be mistaken for a
// validated one.
func (g *Gate) IsClean(ctx context.Context, path string, tc ToolConfig) bool {
	return !g.hasCompilerWarnings(ctx, path, tc) && !g.hasSanitizerFindings(ctx, path, tc)
}

func (g *Gate) hasCompilerWarnings(ctx context.Context, path string, tc ToolConfig) bool {
	obj := path + ".warncheck.o"
	defer removeQuiet(obj)

	argv := []string{tc.CompilerPath, path, "-o", obj, "-Wall", "-Wextra", "-Werror"}
	if tc.IncludePath != "" {
		argv = append(argv, "-I"+tc.IncludePath)
	}

	res, err := g.runner.Run(ctx, "", argv, sanitizeTimeout, procexec.Capture)
	if err != nil {
		return true
	}
	return res.ExitCode != 0
}

func (g *Gate) hasSanitizerFindings(ctx context.Context, path string, tc ToolConfig) bool {
	bin := path + ".sanitize.o"
	defer removeQuiet(bin)

	buildArgv := []string{tc.CompilerPath, path, "-o", bin, "-fsanitize=address,undefined", "-w"}
	if tc.IncludePath != "" {
		buildArgv = append(buildArgv, "-I"+tc.IncludePath)
	}

	buildRes, err := g.runner.Run(ctx, "", buildArgv, sanitizeTimeout, procexec.Capture)
	if err != nil || buildRes.ExitCode != 0 {
		return true
	}

	runRes, err := g.runner.Run(ctx, "", []string{bin}, sanitizeTimeout, procexec.Capture)
	if err != nil {
		return true
	}
	if runRes.ExitCode != 0 {
		return true
	}
	return len(runRes.Stderr) > 0
}

func removeQuiet(path string) {
	_ = os.Remove(path)
}
