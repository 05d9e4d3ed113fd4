package strategy

import "time"

// Budget tracks the shared max_iterations/max_seconds termination
// conditions. A single helper is used by every leaf
// strategy instead of re-deriving the two checks ad hoc.
type Budget struct {
	MaxIterations int // 0 means unbounded
	MaxSeconds    int // 0 means unbounded
	start         time.Time
	iter          int
}

// NewBudget starts the wall-clock timer now.
func NewBudget(maxIterations, maxSeconds int) *Budget {
	return &Budget{MaxIterations: maxIterations, MaxSeconds: maxSeconds, start: time.Now()}
}

// Tick increments the iteration counter and returns it (1-indexed).
func (b *Budget) Tick() int {
	b.iter++
	return b.iter
}

// Iterations returns the number of completed ticks.
func (b *Budget) Iterations() int { return b.iter }

// IterationsExceeded reports whether the iteration budget is exhausted.
func (b *Budget) IterationsExceeded() bool {
	return b.MaxIterations > 0 && b.iter > b.MaxIterations
}

// TimeExceeded reports whether the wall-time budget is exhausted.
func (b *Budget) TimeExceeded() bool {
	return b.MaxSeconds > 0 && time.Since(b.start) > time.Duration(b.MaxSeconds)*time.Second
}

// Exceeded reports whether either budget is exhausted.
func (b *Budget) Exceeded() bool {
	return b.IterationsExceeded() || b.TimeExceeded()
}
