// Package dedupe resolves the open question in spec section 9: the
// reducer's predicate archives every accepted candidate under a random
// suffix, so the same minimized form can appear many times per
// iteration. Seen tracks candidate content by a fast hash so the search
// loop can skip rescoring byte-identical duplicates within a run.
package dedupe

import (
	"os"

	"github.com/cespare/xxhash/v2"
)

// Seen is a content-hash set of candidate sources already scored this
// run. It is not persisted across runs: per spec section 3, a run's
// iteration directories (and therefore its candidates) are scoped to
// one invocation. The search loop is single-threaded (spec section 5),
// so no locking is needed here.
type Seen struct {
	hashes map[uint64]struct{}
}

// NewSeen creates an empty dedupe set.
func NewSeen() *Seen {
	return &Seen{hashes: make(map[uint64]struct{})}
}

// CheckAndAdd reads path, hashes its contents with xxhash, and returns
// true if this exact content has not been seen before in
// this run — recording it as seen either way the read succeeds. A read
// failure is treated as "not a duplicate" so the caller's normal
// compile-failure handling still applies.
func (s *Seen) CheckAndAdd(path string) (isNew bool, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return true, err
	}

	h := xxhash.Sum64(content)

	if _, ok := s.hashes[h]; ok {
		return false, nil
	}
	s.hashes[h] = struct{}{}
	return true, nil
}

// Len reports how many distinct contents have been recorded.
func (s *Seen) Len() int {
	return len(s.hashes)
}
