package game

import (
	"sync"
	"testing"
)

func TestHistory_PushOrder(t *testing.T) {
	h := NewHistory(20)

	h.Push(1.50)
	h.Push(3.24)
	h.Push(2.00)

	results := h.Results()
	if len(results) != 3 {
		t.Fatalf("Results() length = %d, want 3", len(results))
	}

	// Newest first
	want := []float64{2.00, 3.24, 1.50}
	for i, m := range want {
		if results[i] != m {
			t.Errorf("Results()[%d] = %v, want %v", i, results[i], m)
		}
	}
}

func TestHistory_Cap(t *testing.T) {
	h := NewHistory(20)

	for i := 1; i <= 25; i++ {
		h.Push(float64(i))
	}

	if h.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", h.Len())
	}

	results := h.Results()
	if results[0] != 25.0 {
		t.Errorf("Results()[0] = %v, want 25 (most recent)", results[0])
	}
	if results[19] != 6.0 {
		t.Errorf("Results()[19] = %v, want 6 (oldest kept)", results[19])
	}
}

func TestHistory_ResultsIsCopy(t *testing.T) {
	h := NewHistory(20)
	h.Push(1.23)

	results := h.Results()
	results[0] = 99.0

	if h.Results()[0] != 1.23 {
		t.Error("Results() must return a copy, not the backing slice")
	}
}

func TestHistory_Concurrent(t *testing.T) {
	h := NewHistory(20)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			h.Push(float64(n))
			_ = h.Results()
		}(i)
	}
	wg.Wait()

	if h.Len() != 20 {
		t.Errorf("Len() = %d, want 20 after concurrent pushes", h.Len())
	}
}
