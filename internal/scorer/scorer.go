// Package scorer implements the Heuristic Scorer (C5): the multi-
// objective scalar score for a (seed, candidate) pair, gated by the
// constraints in spec section 4.5.
package scorer

import (
	"context"

	"github.com/codedensity/srcreduce/internal/sizer"
)

// sourceFloor is the degenerate-output guard: candidates at or below
// this many bytes score zero regardless of density.
const sourceFloor = 500

// Sizer is the subset of sizer.Sizer the scorer needs.
type Sizer interface {
	SourceSize(path string) (uint64, error)
	BinaryTextSize(ctx context.Context, path string, tc sizer.ToolConfig) (uint64, error)
}

// Scorer computes candidate scores against their originating seed.
type Scorer struct {
	sizer Sizer
}

// New creates a Scorer backed by the given Sizer.
func New(s Sizer) *Scorer {
	return &Scorer{sizer: s}
}

// Score applies the four gates in order and returns the text/source
// density ratio for a candidate that survives them, or 0 for one that
// does not. An error is returned only when a size measurement itself
// fails (compile or parse failure); callers should treat that the same
// as "unscorable" per spec section 4.2.
func (s *Scorer) Score(ctx context.Context, seedPath, candPath string, tc sizer.ToolConfig) (float64, error) {
	seedSrc, err := s.sizer.SourceSize(seedPath)
	if err != nil {
		return 0, err
	}
	candSrc, err := s.sizer.SourceSize(candPath)
	if err != nil {
		return 0, err
	}

	// Gate 1: candidate must not have grown the source.
	if int64(seedSrc)-int64(candSrc) < 0 {
		return 0, nil
	}

	seedText, err := s.sizer.BinaryTextSize(ctx, seedPath, tc)
	if err != nil {
		return 0, err
	}
	candText, err := s.sizer.BinaryTextSize(ctx, candPath, tc)
	if err != nil {
		return 0, err
	}

	// Gate 2: candidate must not have shrunk the binary.
	if int64(seedText)-int64(candText) > 0 {
		return 0, nil
	}

	// Gate 3: degenerate-output floor.
	if candSrc <= sourceFloor {
		return 0, nil
	}

	return float64(candText) / float64(candSrc), nil
}
