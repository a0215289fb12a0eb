package config

import (
	"fmt"
	"os"

	srcerrors "github.com/codedensity/srcreduce/internal/errors"
)

// Validator checks a RunConfig for the startup misconfigurations the
// spec calls out as fatal: missing tool binaries, a missing example
// file, or a nonsensical seed-source combination.
type Validator struct{}

// NewValidator creates a new RunConfig validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns a *errors.ConfigError describing the first problem
// found, or nil if cfg is ready to drive a search.
func (v *Validator) Validate(cfg *RunConfig) error {
	if !cfg.OptFlag.Valid() {
		return srcerrors.NewConfigError("compiler-flag", string(cfg.OptFlag), fmt.Errorf("must be one of none, O0, O1, O2, O3"))
	}

	if err := requireExecutable("compiler", cfg.CompilerPath); err != nil {
		return err
	}
	if err := requireExecutable("reducer", cfg.ReducerPath); err != nil {
		return err
	}
	if err := requireExecutable("size", cfg.SizeToolPath); err != nil {
		return err
	}
	if cfg.IncludePath != "" {
		if err := requirePath("include", cfg.IncludePath); err != nil {
			return err
		}
	}

	if cfg.Random && cfg.ExamplePath != "" {
		return srcerrors.NewConfigError("source", "", fmt.Errorf("random and example are mutually exclusive"))
	}
	if !cfg.Random && cfg.ExamplePath == "" {
		return srcerrors.NewConfigError("source", "", fmt.Errorf("one of --random or --example is required"))
	}
	if cfg.Random {
		if err := requireExecutable("generator", cfg.GeneratorPath); err != nil {
			return err
		}
	} else {
		if _, err := os.Stat(cfg.ExamplePath); err != nil {
			return srcerrors.NewConfigError("example", cfg.ExamplePath, fmt.Errorf("example file does not exist: %w", err))
		}
	}

	if cfg.MaxIterations <= 0 {
		return srcerrors.NewConfigError("max-iterations", fmt.Sprint(cfg.MaxIterations), fmt.Errorf("must be positive"))
	}
	if cfg.OverallTimeout <= 0 {
		return srcerrors.NewConfigError("timeout", cfg.OverallTimeout.String(), fmt.Errorf("must be positive"))
	}
	if cfg.OutputDir == "" {
		return srcerrors.NewConfigError("output", "", fmt.Errorf("output directory is required"))
	}

	return nil
}

func requireExecutable(field, path string) error {
	if path == "" {
		return srcerrors.NewConfigError(field, "", fmt.Errorf("path is required"))
	}
	info, err := os.Stat(path)
	if err != nil {
		return srcerrors.NewConfigError(field, path, fmt.Errorf("not found: %w", err))
	}
	if info.IsDir() {
		return srcerrors.NewConfigError(field, path, fmt.Errorf("is a directory, expected an executable"))
	}
	return nil
}

func requirePath(field, path string) error {
	if path == "" {
		return srcerrors.NewConfigError(field, "", fmt.Errorf("path is required"))
	}
	if _, err := os.Stat(path); err != nil {
		return srcerrors.NewConfigError(field, path, fmt.Errorf("not found: %w", err))
	}
	return nil
}
