package strategies

import (
	"math"

	"tunecore/internal/search/strategy"
)

func init() {
	strategy.Default().Register("binary", func() strategy.Strategy { return NewBinary() })
}

// Binary implements the 1-D monotone binary search toward a target.
// Preconditions: len(lower) == len(upper) == 1, target set, objective
// assumed monotone non-decreasing in the parameter.
type Binary struct {
	name          string
	bounds        strategy.Bounds
	obj           strategy.ObjectiveSpec
	maxIterations int
	maxSeconds    int
	obs           strategy.Observer
}

func NewBinary() *Binary {
	return &Binary{obs: strategy.NoopObserver{}}
}

func (b *Binary) GetOptions() strategy.Options {
	o := strategy.New()
	o["opt:lower_bound"] = append([]float64(nil), b.bounds.Lower...)
	o["opt:upper_bound"] = append([]float64(nil), b.bounds.Upper...)
	if b.obj.Target != nil {
		o["opt:target"] = *b.obj.Target
	}
	o["opt:global_rel_tolerance"] = b.obj.GlobalRelTolerance
	o["opt:max_iterations"] = b.maxIterations
	o["opt:max_seconds"] = b.maxSeconds
	return o
}

func (b *Binary) SetOptions(o strategy.Options) error {
	if lower, ok := o.Float64Slice("opt:lower_bound"); ok {
		b.bounds.Lower = lower
	}
	if upper, ok := o.Float64Slice("opt:upper_bound"); ok {
		b.bounds.Upper = upper
	}
	if len(b.bounds.Lower) > 1 || len(b.bounds.Upper) > 1 {
		return strategy.NewError(strategy.KindConfigInvalid, "binary search requires exactly one dimension", nil)
	}
	if target, ok := o.Float64("opt:target"); ok {
		b.obj.Target = &target
	}
	if tol, ok := o.Float64("opt:global_rel_tolerance"); ok {
		b.obj.GlobalRelTolerance = tol
	}
	if mi, ok := o.Int("opt:max_iterations"); ok {
		b.maxIterations = mi
	}
	if ms, ok := o.Int("opt:max_seconds"); ok {
		b.maxSeconds = ms
	}
	if ob, ok := o["observer"]; ok {
		if obs, ok := ob.(strategy.Observer); ok {
			b.obs = obs
		}
	}
	return nil
}

func (b *Binary) GetConfiguration() strategy.Options {
	o := strategy.New()
	o["children"] = []string{}
	o["thread_safe"] = true
	return o
}

func (b *Binary) Search(eval strategy.EvalFunc, stop *strategy.StopToken) strategy.SearchResult {
	if stop.StopRequested() {
		return strategy.SearchResult{Status: 0, Msg: "stop requested before first evaluation"}
	}
	if len(b.bounds.Lower) != 1 || len(b.bounds.Upper) != 1 {
		return strategy.SearchResult{Status: 1, Msg: "binary search requires exactly one dimension"}
	}
	if b.obj.Target == nil {
		return strategy.SearchResult{Status: 1, Msg: "binary search requires opt:target"}
	}
	target := *b.obj.Target
	budget := strategy.NewBudget(b.maxIterations, b.maxSeconds)

	lo, hi := b.bounds.Lower[0], b.bounds.Upper[0]
	current := safeMidpoint(lo, hi)

	var lowerValue, upperValue float64
	haveLowerValue, haveUpperValue := false, false

	var best strategy.ParameterVector
	var bestOut strategy.MeasurementVector

	b.obs.BeginSearch()
	for {
		if stop.StopRequested() {
			b.obs.EndSearch(best, bestOut)
			return strategy.SearchResult{Inputs: best, Output: bestOut, Status: 0, Msg: "stop requested"}
		}
		budget.Tick()
		x := strategy.ParameterVector{current}
		b.obs.BeginIter(x)
		out, err := eval(x)
		if err != nil {
			b.obs.EndSearch(best, bestOut)
			return strategy.SearchResult{Inputs: best, Output: bestOut, Status: 1, Msg: err.Error()}
		}
		b.obs.EndIter(x, out)
		best, bestOut = x, out
		result := out.Primary()

		if math.Abs(result-target) <= b.obj.GlobalRelTolerance*math.Abs(target) {
			stop.RequestStop()
			b.obs.EndSearch(best, bestOut)
			return strategy.SearchResult{Inputs: best, Output: bestOut, Status: 0}
		}
		if budget.IterationsExceeded() {
			b.obs.EndSearch(best, bestOut)
			return strategy.SearchResult{Inputs: best, Output: bestOut, Status: -1, Msg: "iterations exceeded"}
		}
		if budget.TimeExceeded() {
			b.obs.EndSearch(best, bestOut)
			return strategy.SearchResult{Inputs: best, Output: bestOut, Status: -2, Msg: "time-limit exceeded"}
		}

		if result < target {
			if haveLowerValue && result < lowerValue {
				b.obs.EndSearch(best, bestOut)
				return strategy.SearchResult{Inputs: best, Output: bestOut, Status: 1, Msg: "non-monotonic objective detected"}
			}
			lo = current
			lowerValue, haveLowerValue = result, true
		} else {
			if haveUpperValue && result > upperValue {
				b.obs.EndSearch(best, bestOut)
				return strategy.SearchResult{Inputs: best, Output: bestOut, Status: 1, Msg: "non-monotonic objective detected"}
			}
			hi = current
			upperValue, haveUpperValue = result, true
		}

		if lo > hi {
			b.obs.EndSearch(best, bestOut)
			return strategy.SearchResult{Inputs: best, Output: bestOut, Status: 0, Msg: "numeric floor reached"}
		}
		current = safeMidpoint(lo, hi)
	}
}

func (b *Binary) Clone() strategy.Strategy {
	cp := *b
	cp.bounds.Lower = append([]float64(nil), b.bounds.Lower...)
	cp.bounds.Upper = append([]float64(nil), b.bounds.Upper...)
	if b.obj.Target != nil {
		t := *b.obj.Target
		cp.obj.Target = &t
	}
	return &cp
}

func (b *Binary) SetName(prefix string) { b.name = prefix }
func (b *Binary) Name() string          { return b.name }

var _ strategy.Strategy = (*Binary)(nil)
