package strategies

import (
	"tunecore/internal/search/strategy"
)

func init() {
	strategy.Default().Register("guess_first", func() strategy.Strategy {
		return NewGuessFirst(nil)
	})
}

// GuessFirst evaluates prediction first; if it already satisfies the
// target it early-exits, otherwise it delegates to an inner strategy.
type GuessFirst struct {
	name   string
	bounds strategy.Bounds
	obj    strategy.ObjectiveSpec
	inner  strategy.Strategy
	obs    strategy.Observer
}

// NewGuessFirst wraps inner. If inner is nil, set_options's
// "guess_first:search" key must supply one via the registry before Search
// is called.
func NewGuessFirst(inner strategy.Strategy) *GuessFirst {
	return &GuessFirst{inner: inner, obs: strategy.NoopObserver{}}
}

func (g *GuessFirst) GetOptions() strategy.Options {
	o := strategy.New()
	o["opt:lower_bound"] = append([]float64(nil), g.bounds.Lower...)
	o["opt:upper_bound"] = append([]float64(nil), g.bounds.Upper...)
	o["opt:prediction"] = append([]float64(nil), g.bounds.Prediction...)
	if g.obj.Target != nil {
		o["opt:target"] = *g.obj.Target
	}
	if g.inner != nil {
		inner := g.inner.GetOptions()
		for k, v := range inner {
			o[g.Name()+"/"+k] = v
		}
	}
	return o
}

func (g *GuessFirst) SetOptions(o strategy.Options) error {
	if lower, ok := o.Float64Slice("opt:lower_bound"); ok {
		g.bounds.Lower = lower
	}
	if upper, ok := o.Float64Slice("opt:upper_bound"); ok {
		g.bounds.Upper = upper
	}
	if pred, ok := o.Float64Slice("opt:prediction"); ok {
		g.bounds.Prediction = pred
	}
	if target, ok := o.Float64("opt:target"); ok {
		g.obj.Target = &target
	}
	if mode, ok := o.String("opt:objective_mode_name"); ok {
		m, err := strategy.ParseMode(mode)
		if err != nil {
			return strategy.NewError(strategy.KindConfigInvalid, err.Error(), err)
		}
		g.obj.Mode = m
	}
	if tol, ok := o.Float64("opt:global_rel_tolerance"); ok {
		// global_rel_tolerance is only meaningful in Target mode here;
		// reject the combination for Min/Max instead of silently computing
		// against a nil target.
		if g.obj.Mode != strategy.ModeTarget && g.obj.Mode != strategy.ModeNone {
			return strategy.NewError(strategy.KindConfigInvalid, "opt:global_rel_tolerance is only valid with opt:target in Target mode", nil)
		}
		g.obj.GlobalRelTolerance = tol
	}
	if id, ok := o.String("guess_first:search"); ok {
		inner, err := strategy.Default().Instantiate(id)
		if err != nil {
			return err
		}
		g.inner = inner
	}
	if g.inner != nil {
		if err := g.inner.SetOptions(o.Scoped(g.Name())); err != nil {
			return err
		}
		innerOpts := strategy.New()
		innerOpts["opt:lower_bound"] = g.bounds.Lower
		innerOpts["opt:upper_bound"] = g.bounds.Upper
		innerOpts["opt:target"] = o["opt:target"]
		if err := g.inner.SetOptions(innerOpts); err != nil {
			return err
		}
	}
	if ob, ok := o["observer"]; ok {
		if obs, ok := ob.(strategy.Observer); ok {
			g.obs = obs
		}
	}
	return nil
}

func (g *GuessFirst) GetConfiguration() strategy.Options {
	o := strategy.New()
	children := []string{}
	if g.inner != nil {
		children = append(children, g.inner.Name())
	}
	o["children"] = children
	o["thread_safe"] = true
	return o
}

func (g *GuessFirst) Search(eval strategy.EvalFunc, stop *strategy.StopToken) strategy.SearchResult {
	if stop.StopRequested() {
		return strategy.SearchResult{Status: 0, Msg: "stop requested before first evaluation"}
	}
	if g.bounds.Prediction == nil {
		return strategy.SearchResult{Status: 1, Msg: "guess_first requires opt:prediction"}
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

	if g.satisfiesEarly(out) {
		stop.RequestStop()
		g.obs.EndSearch(x, out)
		return strategy.SearchResult{Inputs: x, Output: out, Status: 0}
	}

	if g.inner == nil {
		g.obs.EndSearch(x, out)
		return strategy.SearchResult{Status: 1, Msg: "guess_first requires an inner strategy (guess_first:search)"}
	}
	res := g.inner.Search(eval, stop)
	g.obs.EndSearch(res.Inputs, res.Output)
	return res
}

func (g *GuessFirst) satisfiesEarly(out strategy.MeasurementVector) bool {
	if g.obj.Target == nil || len(out) == 0 {
		return false
	}
	target := *g.obj.Target
	v := out[0]
	switch g.obj.Mode {
	case strategy.ModeTarget:
		tol := g.obj.GlobalRelTolerance
		return v >= target*(1-tol) && v <= target*(1+tol)
	case strategy.ModeMin:
		return v < target
	case strategy.ModeMax:
		return v > target
	default:
		return false
	}
}

func (g *GuessFirst) Clone() strategy.Strategy {
	cp := *g
	cp.bounds.Lower = append([]float64(nil), g.bounds.Lower...)
	cp.bounds.Upper = append([]float64(nil), g.bounds.Upper...)
	cp.bounds.Prediction = append([]float64(nil), g.bounds.Prediction...)
	if g.obj.Target != nil {
		t := *g.obj.Target
		cp.obj.Target = &t
	}
	if g.inner != nil {
		cp.inner = g.inner.Clone()
	}
	return &cp
}

func (g *GuessFirst) SetName(prefix string) {
	g.name = prefix
	if g.inner != nil {
		g.inner.SetName(prefix + "/" + g.inner.Name())
	}
}
func (g *GuessFirst) Name() string { return g.name }

var _ strategy.Strategy = (*GuessFirst)(nil)
