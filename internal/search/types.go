// Package search implements the Search Loop (C8): priority-queue-driven
// selection of seeds, orchestration of the Reducer Driver, gating and
// scoring of its archived candidates, and global-best bookkeeping.
package search

// Candidate is an entry on the Frontier: a scored source file plus the
// root seed its lineage descends from. RootSeed is threaded forward
// from parent to child so GlobalBest can report the seed a winning
// candidate truly originated from, rather than whichever seed happened
// to be active when the frontier was last regenerated (see spec
// section 9, "Seed-origin bookkeeping").
type Candidate struct {
	Score    float64
	Path     string
	RootSeed string
}

// GlobalBest tracks the best candidate seen across the whole run. It is
// updated at most once per iteration, and only on strict improvement.
type GlobalBest struct {
	Defined  bool
	Score    float64
	Path     string
	RootSeed string
}

// update overwrites the best iff candidate strictly improves on it (or
// no best exists yet). Returns whether an update happened.
func (g *GlobalBest) update(c Candidate) bool {
	if !g.Defined || c.Score > g.Score {
		g.Defined = true
		g.Score = c.Score
		g.Path = c.Path
		g.RootSeed = c.RootSeed
		return true
	}
	return false
}
