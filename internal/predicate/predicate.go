// Package predicate implements the Interestingness Predicate Emitter
// (C6): materializing the shell script that smuggles the search's
// multi-objective target through the reducer's boolean interestingness
// interface.
//
// The predicate only encodes hard constraints (compiles, runs, source
// size floor, binary size non-regression); the true scalar ranking
// happens outside the reducer, in the scorer package, once the
// predicate's survivors have been archived. See spec section 9,
// "Multi-objective search smuggled through a boolean predicate".
package predicate

import (
	"fmt"
	"os"
	"path/filepath"
)

// sourceFloor mirrors scorer.sourceFloor; duplicated here because the
// predicate must enforce the same floor inside the shell script, not
// just in the post-hoc scorer (spec section 4.6, step 3).
const sourceFloor = 500

// Params parameterizes one emitted predicate script.
type Params struct {
	SeedPath           string
	CandidateBasename  string
	CompilerPath       string
	OptFlag            string // rendered flag, e.g. "-O2" or ""
	IncludePath        string
	IterationArchiveDir string
}

// ScriptName is the fixed filename the reducer is invoked against,
// matching the original tool's convention.
const ScriptName = "interestingness_test.sh"

// Emit writes the predicate script into dir and marks it executable.
// It returns the script's path.
func Emit(dir string, p Params) (string, error) {
	script := render(p)
	path := filepath.Join(dir, ScriptName)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("failed to write predicate script: %w", err)
	}
	return path, nil
}

// render produces the script body. The size-reporter parsing convention
// here (second line, first whitespace-separated field) must match
// sizer.parseTextSize exactly — see spec section 9's open question on
// the original's `size | awk | tail -n1` vs this convention. We use the
// same "second line, first field" rule everywhere, documented in
// DESIGN.md.
func render(p Params) string {
	return fmt.Sprintf(`#!/bin/bash
set -u

%s %s -o orig.o %s -w -I%s
%s %s -o tmp.o %s -w -I%s

./tmp.o
if [ $? -ne 0 ]; then
    exit 1
fi

if [ "$(wc -c < %s)" -lt %d ]; then
    exit 1
fi

orig_text=$(size orig.o | sed -n '2p' | awk '{print $1}')
tmp_text=$(size tmp.o | sed -n '2p' | awk '{print $1}')

if [ "$tmp_text" -ge "$orig_text" ]; then
    random_suffix=$(mktemp XXXXXXXXXXXXXXXX)
    cp %s "%s/interesting_${random_suffix}.c"
    exit 0
fi

exit 1
`,
		p.CompilerPath, p.SeedPath, p.OptFlag, p.IncludePath,
		p.CompilerPath, p.CandidateBasename, p.OptFlag, p.IncludePath,
		p.CandidateBasename, sourceFloor,
		p.CandidateBasename, p.IterationArchiveDir,
	)
}
