// Package strategies registers the built-in search strategies (leaf and
// wrapper) into strategy.Default() on import.
package strategies

import (
	"tunecore/internal/search/strategy"
)

func init() {
	strategy.Default().Register("guess", func() strategy.Strategy { return NewGuess() })
}

// Guess evaluates exactly one point: the configured prediction vector.
// It ignores the stop token except on entry.
type Guess struct {
	name   string
	bounds strategy.Bounds
	obs    strategy.Observer
}

// NewGuess returns a default-configured Guess strategy.
func NewGuess() *Guess {
	return &Guess{obs: strategy.NoopObserver{}}
}

func (g *Guess) GetOptions() strategy.Options {
	o := strategy.New()
	if g.bounds.Prediction != nil {
		o["opt:prediction"] = append([]float64(nil), g.bounds.Prediction...)
	}
	o["opt:lower_bound"] = append([]float64(nil), g.bounds.Lower...)
	o["opt:upper_bound"] = append([]float64(nil), g.bounds.Upper...)
	return o
}

func (g *Guess) SetOptions(o strategy.Options) error {
	if lower, ok := o.Float64Slice("opt:lower_bound"); ok {
		g.bounds.Lower = lower
	}
	if upper, ok := o.Float64Slice("opt:upper_bound"); ok {
		g.bounds.Upper = upper
	}
	if pred, ok := o.Float64Slice("opt:prediction"); ok {
		if len(g.bounds.Lower) > 0 && len(pred) > len(g.bounds.Lower) {
			return strategy.NewError(strategy.KindConfigInvalid, "prediction length exceeds bound length", nil)
		}
		g.bounds.Prediction = pred
	}
	if ob, ok := o["observer"]; ok {
		if obs, ok := ob.(strategy.Observer); ok {
			g.obs = obs
		}
	}
	return nil
}

func (g *Guess) GetConfiguration() strategy.Options {
	o := strategy.New()
	o["children"] = []string{}
	o["thread_safe"] = true
	return o
}

func (g *Guess) Search(eval strategy.EvalFunc, stop *strategy.StopToken) strategy.SearchResult {
	if stop.StopRequested() {
		return strategy.SearchResult{Status: 0, Msg: "stop requested before first evaluation"}
	}
	if g.bounds.Prediction == nil {
		return strategy.SearchResult{Status: 1, Msg: "guess requires opt:prediction"}
	}
	g.obs.BeginSearch()
	x := strategy.ParameterVector(g.bounds.Prediction).Clone()
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

func (g *Guess) Clone() strategy.Strategy {
	cp := *g
	cp.bounds.Lower = append([]float64(nil), g.bounds.Lower...)
	cp.bounds.Upper = append([]float64(nil), g.bounds.Upper...)
	cp.bounds.Prediction = append([]float64(nil), g.bounds.Prediction...)
	return &cp
}

func (g *Guess) SetName(prefix string) { g.name = prefix }
func (g *Guess) Name() string          { return g.name }

var _ strategy.Strategy = (*Guess)(nil)
