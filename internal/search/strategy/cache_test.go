package strategy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluationCache_PutGet(t *testing.T) {
	t.Parallel()
	c := NewEvaluationCache()
	x := ParameterVector{1, 2, 3}
	m := MeasurementVector{10}

	_, ok := c.Get(x)
	assert.False(t, ok)

	c.Put(x, m)
	got, ok := c.Get(x)
	require.True(t, ok)
	assert.Equal(t, m, got)
	assert.Equal(t, 1, c.Len())
}

func TestEvaluationCache_BitExactKeying(t *testing.T) {
	t.Parallel()
	c := NewEvaluationCache()
	// Variables, not constants: Go folds the constant 0.1 + 0.2 to exactly 0.3.
	a, b := 0.1, 0.2
	c.Put(ParameterVector{a + b}, MeasurementVector{1})
	_, ok := c.Get(ParameterVector{0.3})
	assert.False(t, ok, "0.1+0.2 != 0.3 in float64 bit representation")

	_, ok = c.Get(ParameterVector{a + b})
	assert.True(t, ok)
}

func TestEvaluationCache_ConcurrentInsertOnly(t *testing.T) {
	t.Parallel()
	c := NewEvaluationCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put(ParameterVector{float64(i)}, MeasurementVector{float64(i)})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}
