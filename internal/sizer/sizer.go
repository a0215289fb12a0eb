// Package sizer implements the Sizer (C2): measuring a source file's
// byte length and the .text section size of the binary it compiles to.
package sizer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	srcerrors "github.com/codedensity/srcreduce/internal/errors"
	"github.com/codedensity/srcreduce/internal/procexec"
)

// compileTimeout bounds a single compiler invocation issued by the
// Sizer. It is independent of the reducer's own timeouts.
const compileTimeout = 10 * time.Second

// ToolConfig carries the subset of RunConfig the Sizer needs: the
// compiler, optimization flag, include path and size-reporter binary.
type ToolConfig struct {
	CompilerPath string
	SizeToolPath string
	OptFlag      string // already rendered, e.g. "-O2" or ""
	IncludePath  string
}

// Sizer measures source and binary sizes via a Runner.
type Sizer struct {
	runner *procexec.Runner
}

// New creates a Sizer backed by the given process runner.
func New(runner *procexec.Runner) *Sizer {
	return &Sizer{runner: runner}
}

// SourceSize returns the byte length of path on disk.
func (s *Sizer) SourceSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, srcerrors.NewCompileError(path, "stat", err)
	}
	return uint64(info.Size()), nil
}

// BinaryTextSize compiles path with the configured compiler, flag, -w
// and include path into a scratch object file, parses the size
// reporter's output, and deletes the object before returning.
func (s *Sizer) BinaryTextSize(ctx context.Context, path string, tc ToolConfig) (uint64, error) {
	objPath := filepath.Join(os.TempDir(), scratchObjectName(path))
	defer os.Remove(objPath)

	argv := []string{tc.CompilerPath, path, "-o", objPath, "-w"}
	if tc.OptFlag != "" {
		argv = append(argv, tc.OptFlag)
	}
	if tc.IncludePath != "" {
		argv = append(argv, "-I"+tc.IncludePath)
	}

	res, err := s.runner.Run(ctx, "", argv, compileTimeout, procexec.Capture)
	if err != nil {
		return 0, srcerrors.NewCompileError(path, "compile", err)
	}
	if res.ExitCode != 0 {
		return 0, srcerrors.NewCompileError(path, "compile", errExitCode(res.ExitCode, res.Stderr))
	}

	sizeArgv := []string{tc.SizeToolPath, objPath}
	sizeRes, err := s.runner.Run(ctx, "", sizeArgv, compileTimeout, procexec.Capture)
	if err != nil {
		return 0, srcerrors.NewCompileError(path, "size", err)
	}
	if sizeRes.ExitCode != 0 {
		return 0, srcerrors.NewCompileError(path, "size", errExitCode(sizeRes.ExitCode, sizeRes.Stderr))
	}

	return parseTextSize(string(sizeRes.Stdout), path)
}

// parseTextSize implements the parsing convention the spec fixes in
// section 4.2: the text-section size is the first whitespace-separated
// integer of the size reporter's second line.
func parseTextSize(output, path string) (uint64, error) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) < 2 {
		return 0, srcerrors.NewCompileError(path, "size-parse", errMalformed(output))
	}
	fields := strings.Fields(lines[1])
	if len(fields) == 0 {
		return 0, srcerrors.NewCompileError(path, "size-parse", errMalformed(output))
	}
	v, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, srcerrors.NewCompileError(path, "size-parse", err)
	}
	return v, nil
}

func scratchObjectName(sourcePath string) string {
	return "srcreduce-" + filepath.Base(sourcePath) + ".o"
}

func errExitCode(code int, stderr []byte) error {
	return &exitCodeError{code: code, stderr: string(stderr)}
}

type exitCodeError struct {
	code   int
	stderr string
}

func (e *exitCodeError) Error() string {
	if e.stderr == "" {
		return "exit status " + strconv.Itoa(e.code)
	}
	return "exit status " + strconv.Itoa(e.code) + ": " + e.stderr
}

func errMalformed(output string) error {
	return &malformedError{output: output}
}

type malformedError struct{ output string }

func (e *malformedError) Error() string {
	return "malformed size-reporter output: " + e.output
}
