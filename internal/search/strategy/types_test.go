package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounds_Validate(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		b := Bounds{Lower: []float64{0, 1}, Upper: []float64{1, 2}}
		require.NoError(t, b.Validate())
	})
	t.Run("length mismatch", func(t *testing.T) {
		t.Parallel()
		b := Bounds{Lower: []float64{0, 1}, Upper: []float64{1}}
		assert.Error(t, b.Validate())
	})
	t.Run("lower exceeds upper", func(t *testing.T) {
		t.Parallel()
		b := Bounds{Lower: []float64{2}, Upper: []float64{1}}
		assert.Error(t, b.Validate())
	})
	t.Run("is_integral length mismatch", func(t *testing.T) {
		t.Parallel()
		b := Bounds{Lower: []float64{0, 1}, Upper: []float64{1, 2}, IsIntegral: []bool{true}}
		assert.Error(t, b.Validate())
	})
	t.Run("empty is_integral means all continuous", func(t *testing.T) {
		t.Parallel()
		b := Bounds{Lower: []float64{0}, Upper: []float64{1}}
		assert.False(t, b.Integral(0))
	})
}

func TestBounds_Contains(t *testing.T) {
	t.Parallel()
	b := Bounds{Lower: []float64{0, 0}, Upper: []float64{1, 1}}
	assert.True(t, b.Contains(ParameterVector{0.5, 0.5}))
	assert.True(t, b.Contains(ParameterVector{0, 1}))
	assert.False(t, b.Contains(ParameterVector{-0.1, 0.5}))
	assert.False(t, b.Contains(ParameterVector{0.5}))
}

func TestObjectiveSpec_Validate(t *testing.T) {
	t.Parallel()
	t.Run("target mode requires target", func(t *testing.T) {
		t.Parallel()
		o := ObjectiveSpec{Mode: ModeTarget}
		assert.Error(t, o.Validate())
	})
	t.Run("target mode with target ok", func(t *testing.T) {
		t.Parallel()
		target := 1.0
		o := ObjectiveSpec{Mode: ModeTarget, Target: &target}
		assert.NoError(t, o.Validate())
	})
	t.Run("negative tolerance rejected", func(t *testing.T) {
		t.Parallel()
		o := ObjectiveSpec{Mode: ModeMin, GlobalRelTolerance: -1}
		assert.Error(t, o.Validate())
	})
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	cases := map[string]Mode{
		"min":    ModeMin,
		"max":    ModeMax,
		"target": ModeTarget,
		"none":   ModeNone,
		"":       ModeNone,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.True(t, in == "" || in == got.String())
	}
	_, err := ParseMode("bogus")
	assert.Error(t, err)
}

func TestStopToken_Monotone(t *testing.T) {
	t.Parallel()
	tok := NewStopToken()
	assert.False(t, tok.StopRequested())
	tok.RequestStop()
	assert.True(t, tok.StopRequested())
	tok.RequestStop()
	assert.True(t, tok.StopRequested())
}

func TestStopToken_NilSafe(t *testing.T) {
	t.Parallel()
	var tok *StopToken
	assert.False(t, tok.StopRequested())
}

func TestParameterVector_Clone(t *testing.T) {
	t.Parallel()
	p := ParameterVector{1, 2, 3}
	cp := p.Clone()
	cp[0] = 99
	assert.Equal(t, 1.0, p[0])
	assert.Equal(t, 99.0, cp[0])
}

func TestMeasurementVector_Primary(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, MeasurementVector{}.Primary())
	assert.Equal(t, 5.0, MeasurementVector{5, 6}.Primary())
}

func TestSearchResult_OK(t *testing.T) {
	t.Parallel()
	assert.True(t, SearchResult{Status: 0}.OK())
	assert.False(t, SearchResult{Status: 1}.OK())
	assert.False(t, SearchResult{Status: -1}.OK())
}
