package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunecore/internal/search/strategy"
)

func TestGuess_EvaluatesPrediction(t *testing.T) {
	t.Parallel()
	g := NewGuess()
	require.NoError(t, g.SetOptions(strategy.Options{
		"opt:lower_bound": []float64{0},
		"opt:upper_bound": []float64{1},
		"opt:prediction":  []float64{0.42},
	}))

	var called strategy.ParameterVector
	eval := func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		called = x
		return strategy.MeasurementVector{x[0] * 100}, nil
	}

	res := g.Search(eval, strategy.NewStopToken())
	require.True(t, res.OK())
	assert.Equal(t, strategy.ParameterVector{0.42}, called)
	assert.Equal(t, strategy.ParameterVector{0.42}, res.Inputs)
	assert.Equal(t, 42.0, res.Output[0])
}

func TestGuess_RequiresPrediction(t *testing.T) {
	t.Parallel()
	g := NewGuess()
	require.NoError(t, g.SetOptions(strategy.Options{
		"opt:lower_bound": []float64{0},
		"opt:upper_bound": []float64{1},
	}))
	res := g.Search(func(strategy.ParameterVector) (strategy.MeasurementVector, error) {
		t.Fatal("eval must not be called")
		return nil, nil
	}, strategy.NewStopToken())
	assert.False(t, res.OK())
}

func TestGuess_StopRequestedBeforeEntry(t *testing.T) {
	t.Parallel()
	g := NewGuess()
	require.NoError(t, g.SetOptions(strategy.Options{
		"opt:lower_bound": []float64{0},
		"opt:upper_bound": []float64{1},
		"opt:prediction":  []float64{0.5},
	}))
	stop := strategy.NewStopToken()
	stop.RequestStop()

	called := false
	res := g.Search(func(strategy.ParameterVector) (strategy.MeasurementVector, error) {
		called = true
		return nil, nil
	}, stop)
	assert.True(t, res.OK())
	assert.Empty(t, res.Inputs)
	assert.False(t, called)
}

func TestGuess_PredictionLengthExceedsBounds(t *testing.T) {
	t.Parallel()
	g := NewGuess()
	require.NoError(t, g.SetOptions(strategy.Options{
		"opt:lower_bound": []float64{0},
		"opt:upper_bound": []float64{1},
	}))
	err := g.SetOptions(strategy.Options{"opt:prediction": []float64{0.1, 0.2}})
	assert.Error(t, err)
}

func TestGuess_Clone(t *testing.T) {
	t.Parallel()
	g := NewGuess()
	require.NoError(t, g.SetOptions(strategy.Options{
		"opt:lower_bound": []float64{0},
		"opt:upper_bound": []float64{1},
		"opt:prediction":  []float64{0.5},
	}))
	cloned := g.Clone().(*Guess)
	cloned.bounds.Prediction[0] = 0.9
	assert.Equal(t, 0.5, g.bounds.Prediction[0])
}

func TestGuess_NameScoping(t *testing.T) {
	t.Parallel()
	g := NewGuess()
	g.SetName("guess")
	assert.Equal(t, "guess", g.Name())
}
