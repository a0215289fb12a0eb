package search

import "container/heap"

// Frontier is the max-score-first priority queue of Candidates
// described in spec section 3: "read as max-score first". Ties are
// broken by insertion order (earlier insertions win), which keeps
// extraction order deterministic for identical inputs (spec section 8,
// "given identical RunConfig... two runs produce identical GlobalBest").
type Frontier struct {
	items frontierHeap
	seq   int
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{}
}

// Push inserts c into the Frontier.
func (f *Frontier) Push(c Candidate) {
	heap.Push(&f.items, frontierItem{cand: c, seq: f.seq})
	f.seq++
}

// Pop removes and returns the highest-scoring Candidate. The second
// return value is false if the Frontier is empty.
func (f *Frontier) Pop() (Candidate, bool) {
	if f.items.Len() == 0 {
		return Candidate{}, false
	}
	item := heap.Pop(&f.items).(frontierItem)
	return item.cand, true
}

// Len reports how many Candidates are queued.
func (f *Frontier) Len() int {
	return f.items.Len()
}

type frontierItem struct {
	cand Candidate
	seq  int
}

// frontierHeap is a max-heap on Score with seq as a deterministic
// tie-breaker, implementing container/heap.Interface.
type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].cand.Score != h[j].cand.Score {
		return h[i].cand.Score > h[j].cand.Score
	}
	return h[i].seq < h[j].seq
}

func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x interface{}) {
	*h = append(*h, x.(frontierItem))
}

func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
