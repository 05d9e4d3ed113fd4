package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunecore/internal/search/strategy"
)

func buildRandom(t *testing.T, seed int64, maxIter int) *Random {
	t.Helper()
	r := NewRandom()
	require.NoError(t, r.SetOptions(strategy.Options{
		"opt:lower_bound":         []float64{0.0},
		"opt:upper_bound":         []float64{1.0},
		"opt:max_iterations":      maxIter,
		"random:seed":             seed,
		"opt:objective_mode_name": "min",
	}))
	return r
}

// Same seed, same bounds/iterations -> identical
// result across two independent runs.
func TestRandom_SeedReproducibility(t *testing.T) {
	t.Parallel()
	eval := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		return strategy.MeasurementVector{x[0]}, nil
	}

	r1 := buildRandom(t, 12345, 20)
	res1 := r1.Search(eval, strategy.NewStopToken())

	r2 := buildRandom(t, 12345, 20)
	res2 := r2.Search(eval, strategy.NewStopToken())

	require.True(t, res1.OK())
	require.True(t, res2.OK())
	assert.Equal(t, res1.Inputs, res2.Inputs)
	assert.Equal(t, res1.Output, res2.Output)
}

func TestRandom_SamplesWithinBounds(t *testing.T) {
	t.Parallel()
	r := buildRandom(t, 1, 30)
	bounds := strategy.Bounds{Lower: []float64{0}, Upper: []float64{1}}
	eval := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		require.True(t, bounds.Contains(x), "x=%v out of bounds", x)
		return strategy.MeasurementVector{x[0]}, nil
	}
	res := r.Search(eval, strategy.NewStopToken())
	assert.True(t, res.OK())
	assert.True(t, bounds.Contains(res.Inputs))
}

func TestRandom_MinModeFindsLowest(t *testing.T) {
	t.Parallel()
	r := buildRandom(t, 7, 50)
	eval := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		return strategy.MeasurementVector{x[0]}, nil
	}
	res := r.Search(eval, strategy.NewStopToken())
	require.True(t, res.OK())

	r2 := buildRandom(t, 7, 50)
	var allX []float64
	eval2 := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		allX = append(allX, x[0])
		return strategy.MeasurementVector{x[0]}, nil
	}
	_ = r2.Search(eval2, strategy.NewStopToken())

	min := allX[0]
	for _, v := range allX {
		if v < min {
			min = v
		}
	}
	assert.Equal(t, min, res.Output[0])
}

func TestRandom_StopRequestedBeforeEntry(t *testing.T) {
	t.Parallel()
	r := buildRandom(t, 1, 10)
	stop := strategy.NewStopToken()
	stop.RequestStop()
	called := false
	res := r.Search(func(strategy.ParameterVector) (strategy.MeasurementVector, error) {
		called = true
		return nil, nil
	}, stop)
	assert.True(t, res.OK())
	assert.False(t, called)
}

func TestRandom_RequiresBounds(t *testing.T) {
	t.Parallel()
	r := NewRandom()
	res := r.Search(func(strategy.ParameterVector) (strategy.MeasurementVector, error) {
		t.Fatal("eval must not be called")
		return nil, nil
	}, strategy.NewStopToken())
	assert.False(t, res.OK())
}

func TestRandom_EarlyExitMinModeWithTarget(t *testing.T) {
	t.Parallel()
	r := NewRandom()
	require.NoError(t, r.SetOptions(strategy.Options{
		"opt:lower_bound":         []float64{0.0},
		"opt:upper_bound":         []float64{1.0},
		"opt:max_iterations":      1000,
		"random:seed":             int64(42),
		"opt:objective_mode_name": "min",
		"opt:target":              0.9,
	}))
	calls := 0
	eval := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		calls++
		return strategy.MeasurementVector{x[0]}, nil
	}
	res := r.Search(eval, strategy.NewStopToken())
	require.True(t, res.OK())
	assert.Less(t, calls, 1000)
}
