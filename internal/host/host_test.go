package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunecore/internal/compressor"
	"tunecore/internal/search/objective"
	_ "tunecore/internal/search/strategies"
	"tunecore/internal/search/strategy"
)

func mockCompressor() *compressor.Mock {
	return compressor.NewMock("mock", func(settings map[string]any) compressor.Metrics {
		x, _ := settings["x"].(float64)
		return compressor.Metrics{"cr": 100 * x}
	})
}

func TestBuild_MissingInputs_Errors(t *testing.T) {
	t.Parallel()
	opts := strategy.Options{
		"opt:output": []string{"cr"},
		"opt:search": "guess_midpoint",
	}
	_, err := Build(opts, mockCompressor(), strategy.Default(), objective.Default)
	assert.Error(t, err)
}

func TestBuild_MissingOutput_Errors(t *testing.T) {
	t.Parallel()
	opts := strategy.Options{
		"opt:inputs": []string{"x"},
		"opt:search": "guess_midpoint",
	}
	_, err := Build(opts, mockCompressor(), strategy.Default(), objective.Default)
	assert.Error(t, err)
}

func TestBuild_MissingSearch_Errors(t *testing.T) {
	t.Parallel()
	opts := strategy.Options{
		"opt:inputs": []string{"x"},
		"opt:output": []string{"cr"},
	}
	_, err := Build(opts, mockCompressor(), strategy.Default(), objective.Default)
	assert.Error(t, err)
}

func TestBuild_UnknownSearchID_Errors(t *testing.T) {
	t.Parallel()
	opts := strategy.Options{
		"opt:inputs": []string{"x"},
		"opt:output": []string{"cr"},
		"opt:search": "does_not_exist",
	}
	_, err := Build(opts, mockCompressor(), strategy.Default(), objective.Default)
	assert.Error(t, err)
}

func TestHost_Run_EndToEnd_GuessMidpoint(t *testing.T) {
	t.Parallel()
	opts := strategy.Options{
		"opt:inputs":      []string{"x"},
		"opt:output":      []string{"cr"},
		"opt:search":      "guess_midpoint",
		"opt:lower_bound": []float64{0.0},
		"opt:upper_bound": []float64{1.0},
	}
	h, err := Build(opts, mockCompressor(), strategy.Default(), objective.Default)
	require.NoError(t, err)

	res := h.Run(context.Background())
	require.True(t, res.OK(), "msg=%s", res.Msg)
	assert.Equal(t, strategy.ParameterVector{0.5}, res.Inputs)
	assert.Equal(t, 50.0, res.Output[0])
}

func TestHost_Run_BestReplay_SetsCompressorToWinningSettings(t *testing.T) {
	t.Parallel()
	proto := mockCompressor()
	opts := strategy.Options{
		"opt:inputs":      []string{"x"},
		"opt:output":      []string{"cr"},
		"opt:search":      "guess_midpoint",
		"opt:lower_bound": []float64{0.0},
		"opt:upper_bound": []float64{1.0},
	}
	h, err := Build(opts, proto, strategy.Default(), objective.Default)
	require.NoError(t, err)

	res := h.Run(context.Background())
	require.True(t, res.OK())
	// The best-replay applies the winning inputs to the prototype itself.
	assert.Equal(t, 0.5, proto.Options()["x"])
	assert.Equal(t, strategy.ParameterVector{0.5}, res.Inputs)
}

func TestHost_Run_EvaluatorErrorPropagates(t *testing.T) {
	t.Parallel()
	proto := mockCompressor()
	proto.FailureAfter = 1
	opts := strategy.Options{
		"opt:inputs":      []string{"x"},
		"opt:output":      []string{"cr"},
		"opt:search":      "guess_midpoint",
		"opt:lower_bound": []float64{0.0},
		"opt:upper_bound": []float64{1.0},
	}
	h, err := Build(opts, proto, strategy.Default(), objective.Default)
	require.NoError(t, err)

	res := h.Run(context.Background())
	assert.False(t, res.OK())
}

func TestHost_Run_MissingMetric_Errors(t *testing.T) {
	t.Parallel()
	proto := compressor.NewMock("mock", func(settings map[string]any) compressor.Metrics {
		return compressor.Metrics{}
	})
	opts := strategy.Options{
		"opt:inputs":      []string{"x"},
		"opt:output":      []string{"cr"},
		"opt:search":      "guess_midpoint",
		"opt:lower_bound": []float64{0.0},
		"opt:upper_bound": []float64{1.0},
	}
	h, err := Build(opts, proto, strategy.Default(), objective.Default)
	require.NoError(t, err)

	res := h.Run(context.Background())
	assert.False(t, res.OK())
}

func TestHost_StopToken_UsableBeforeRun(t *testing.T) {
	t.Parallel()
	proto := mockCompressor()
	opts := strategy.Options{
		"opt:inputs":      []string{"x"},
		"opt:output":      []string{"cr"},
		"opt:search":      "guess_midpoint",
		"opt:lower_bound": []float64{0.0},
		"opt:upper_bound": []float64{1.0},
	}
	h, err := Build(opts, proto, strategy.Default(), objective.Default)
	require.NoError(t, err)

	h.StopToken().RequestStop()
	res := h.Run(context.Background())
	assert.True(t, res.OK())
	assert.Empty(t, res.Inputs)
}
