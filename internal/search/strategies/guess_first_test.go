package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunecore/internal/search/strategy"
)

func TestGuessFirst_EarlyExitTargetMode(t *testing.T) {
	t.Parallel()
	gf := NewGuessFirst(NewGuessMidpoint())
	require.NoError(t, gf.SetOptions(strategy.Options{
		"opt:lower_bound":          []float64{0.0},
		"opt:upper_bound":          []float64{1.0},
		"opt:prediction":           []float64{0.5},
		"opt:target":               0.5,
		"opt:objective_mode_name":  "target",
		"opt:global_rel_tolerance": 0.01,
	}))

	innerCalled := false
	eval := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		if x[0] != 0.5 {
			innerCalled = true
		}
		return strategy.MeasurementVector{x[0]}, nil
	}
	res := gf.Search(eval, strategy.NewStopToken())
	require.True(t, res.OK())
	assert.False(t, innerCalled, "prediction already satisfies target; inner must not run")
	assert.Equal(t, strategy.ParameterVector{0.5}, res.Inputs)
}

func TestGuessFirst_DelegatesToInner(t *testing.T) {
	t.Parallel()
	gf := NewGuessFirst(NewGuessMidpoint())
	require.NoError(t, gf.SetOptions(strategy.Options{
		"opt:lower_bound":          []float64{0.0},
		"opt:upper_bound":          []float64{1.0},
		"opt:prediction":           []float64{0.1},
		"opt:target":               0.9,
		"opt:objective_mode_name":  "target",
		"opt:global_rel_tolerance": 0.01,
	}))

	var calls []float64
	eval := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		calls = append(calls, x[0])
		return strategy.MeasurementVector{x[0]}, nil
	}
	res := gf.Search(eval, strategy.NewStopToken())
	require.True(t, res.OK())
	require.Len(t, calls, 2, "prediction then inner midpoint")
	assert.Equal(t, 0.1, calls[0])
	assert.Equal(t, 0.5, calls[1])
	assert.Equal(t, strategy.ParameterVector{0.5}, res.Inputs)
}

func TestGuessFirst_MinModeEarlyExit(t *testing.T) {
	t.Parallel()
	gf := NewGuessFirst(NewGuessMidpoint())
	require.NoError(t, gf.SetOptions(strategy.Options{
		"opt:lower_bound":         []float64{0.0},
		"opt:upper_bound":         []float64{1.0},
		"opt:prediction":          []float64{0.1},
		"opt:target":              0.5,
		"opt:objective_mode_name": "min",
	}))
	calls := 0
	eval := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		calls++
		return strategy.MeasurementVector{x[0]}, nil
	}
	res := gf.Search(eval, strategy.NewStopToken())
	require.True(t, res.OK())
	assert.Equal(t, 1, calls, "0.1 < target 0.5 in Min mode must early-exit")
}

// opt:global_rel_tolerance is rejected outside Target
// mode rather than silently computing tolerance against a nil target.
func TestGuessFirst_RejectsToleranceOutsideTargetMode(t *testing.T) {
	t.Parallel()
	gf := NewGuessFirst(NewGuessMidpoint())
	require.NoError(t, gf.SetOptions(strategy.Options{
		"opt:objective_mode_name": "min",
	}))
	err := gf.SetOptions(strategy.Options{"opt:global_rel_tolerance": 0.1})
	assert.Error(t, err)
}

func TestGuessFirst_RequiresPrediction(t *testing.T) {
	t.Parallel()
	gf := NewGuessFirst(NewGuessMidpoint())
	require.NoError(t, gf.SetOptions(strategy.Options{
		"opt:lower_bound": []float64{0},
		"opt:upper_bound": []float64{1},
	}))
	res := gf.Search(func(strategy.ParameterVector) (strategy.MeasurementVector, error) {
		t.Fatal("eval must not be called")
		return nil, nil
	}, strategy.NewStopToken())
	assert.False(t, res.OK())
}

func TestGuessFirst_NameScoping(t *testing.T) {
	t.Parallel()
	inner := NewGuessMidpoint()
	inner.SetName("guess_midpoint")
	gf := NewGuessFirst(inner)
	gf.SetName("guess_first")
	assert.Equal(t, "guess_first", gf.Name())
	assert.Equal(t, "guess_first/guess_midpoint", inner.Name())
}
