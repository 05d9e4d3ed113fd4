package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudget_Iterations(t *testing.T) {
	t.Parallel()
	b := NewBudget(3, 0)
	assert.False(t, b.IterationsExceeded())
	b.Tick()
	b.Tick()
	b.Tick()
	assert.False(t, b.IterationsExceeded())
	b.Tick()
	assert.True(t, b.IterationsExceeded())
}

func TestBudget_Unbounded(t *testing.T) {
	t.Parallel()
	b := NewBudget(0, 0)
	for i := 0; i < 1000; i++ {
		b.Tick()
	}
	assert.False(t, b.IterationsExceeded())
	assert.False(t, b.TimeExceeded())
	assert.False(t, b.Exceeded())
}

func TestBudget_TimeExceeded(t *testing.T) {
	t.Parallel()
	b := NewBudget(0, 0)
	b.MaxSeconds = 1
	b.start = time.Now().Add(-2 * time.Second)
	assert.True(t, b.TimeExceeded())
	assert.True(t, b.Exceeded())
}
