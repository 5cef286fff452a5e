package game

import (
	"sync"
)

// History keeps the most recent crash multipliers, newest first, capped at a
// fixed size. Appended to exactly once per round, at the crash transition.
type History struct {
	mu      sync.RWMutex
	max     int
	results []float64
}

func NewHistory(max int) *History {
	return &History{
		max:     max,
		results: make([]float64, 0, max),
	}
}

// Push prepends a crash multiplier, evicting the oldest entry past the cap.
func (h *History) Push(multiplier float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results = append([]float64{multiplier}, h.results...)
	if len(h.results) > h.max {
		h.results = h.results[:h.max]
	}
}

// Results returns a copy, newest first.
func (h *History) Results() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]float64, len(h.results))
	copy(out, h.results)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.results)
}
