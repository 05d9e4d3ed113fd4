package strategies

import (
	"tunecore/internal/search/strategy"
)

func init() {
	strategy.Default().Register("guess_midpoint", func() strategy.Strategy { return NewGuessMidpoint() })
}

// GuessMidpoint evaluates the element-wise midpoint of lower and upper,
// using numerically safe midpoint semantics so extreme same-sign bounds
// cannot overflow.
type GuessMidpoint struct {
	name   string
	bounds strategy.Bounds
	obs    strategy.Observer
}

func NewGuessMidpoint() *GuessMidpoint {
	return &GuessMidpoint{obs: strategy.NoopObserver{}}
}

func safeMidpoint(lo, hi float64) float64 {
	// lo + (hi-lo)/2 avoids overflow that (lo+hi)/2 risks for extreme
	// same-sign bounds near the float64 range limit.
	return lo + (hi-lo)/2
}

func (g *GuessMidpoint) GetOptions() strategy.Options {
	o := strategy.New()
	o["opt:lower_bound"] = append([]float64(nil), g.bounds.Lower...)
	o["opt:upper_bound"] = append([]float64(nil), g.bounds.Upper...)
	return o
}

func (g *GuessMidpoint) SetOptions(o strategy.Options) error {
	if lower, ok := o.Float64Slice("opt:lower_bound"); ok {
		g.bounds.Lower = lower
	}
	if upper, ok := o.Float64Slice("opt:upper_bound"); ok {
		g.bounds.Upper = upper
	}
	if err := g.bounds.Validate(); err != nil {
		return strategy.NewError(strategy.KindConfigInvalid, err.Error(), err)
	}
	if ob, ok := o["observer"]; ok {
		if obs, ok := ob.(strategy.Observer); ok {
			g.obs = obs
		}
	}
	return nil
}

func (g *GuessMidpoint) GetConfiguration() strategy.Options {
	o := strategy.New()
	o["children"] = []string{}
	o["thread_safe"] = true
	return o
}

func (g *GuessMidpoint) Search(eval strategy.EvalFunc, stop *strategy.StopToken) strategy.SearchResult {
	if stop.StopRequested() {
		return strategy.SearchResult{Status: 0, Msg: "stop requested before first evaluation"}
	}
	if len(g.bounds.Lower) == 0 {
		return strategy.SearchResult{Status: 1, Msg: "guess_midpoint requires bounds"}
	}
	x := make(strategy.ParameterVector, len(g.bounds.Lower))
	for i := range x {
		x[i] = safeMidpoint(g.bounds.Lower[i], g.bounds.Upper[i])
	}
	g.obs.BeginSearch()
	g.obs.BeginIter(x)
	out, err := eval(x)
	if err != nil {
		g.obs.EndSearch(x, out)
		return strategy.SearchResult{Inputs: x, Status: 1, Msg: err.Error()}
	}
	g.obs.EndIter(x, out)
	g.obs.EndSearch(x, out)
	return strategy.SearchResult{Inputs: x, Output: out, Status: 0}
}

func (g *GuessMidpoint) Clone() strategy.Strategy {
	cp := *g
	cp.bounds.Lower = append([]float64(nil), g.bounds.Lower...)
	cp.bounds.Upper = append([]float64(nil), g.bounds.Upper...)
	return &cp
}

func (g *GuessMidpoint) SetName(prefix string) { g.name = prefix }
func (g *GuessMidpoint) Name() string          { return g.name }

var _ strategy.Strategy = (*GuessMidpoint)(nil)
