package strategies

import (
	"context"
	"math"
	"math/rand"
	"time"

	"tunecore/internal/queue"
	"tunecore/internal/search/strategy"
)

func init() {
	strategy.Default().Register("random", func() strategy.Strategy { return NewRandom() })
}

// Random uniformly samples max_iterations points independently per
// dimension from [lower, upper], dispatching samples through the
// distributed work queue.
type Random struct {
	name          string
	bounds        strategy.Bounds
	obj           strategy.ObjectiveSpec
	maxIterations int
	maxSeconds    int
	seed          *int64
	workers       int
	obs           strategy.Observer
}

func NewRandom() *Random {
	return &Random{workers: 1, obs: strategy.NoopObserver{}}
}

func (r *Random) GetOptions() strategy.Options {
	o := strategy.New()
	o["opt:lower_bound"] = append([]float64(nil), r.bounds.Lower...)
	o["opt:upper_bound"] = append([]float64(nil), r.bounds.Upper...)
	o["opt:max_iterations"] = r.maxIterations
	o["opt:max_seconds"] = r.maxSeconds
	if r.seed != nil {
		o["random:seed"] = *r.seed
	}
	return o
}

func (r *Random) SetOptions(o strategy.Options) error {
	if lower, ok := o.Float64Slice("opt:lower_bound"); ok {
		r.bounds.Lower = lower
	}
	if upper, ok := o.Float64Slice("opt:upper_bound"); ok {
		r.bounds.Upper = upper
	}
	if err := r.bounds.Validate(); err != nil {
		return strategy.NewError(strategy.KindConfigInvalid, err.Error(), err)
	}
	if mi, ok := o.Int("opt:max_iterations"); ok {
		r.maxIterations = mi
	}
	if ms, ok := o.Int("opt:max_seconds"); ok {
		r.maxSeconds = ms
	}
	if target, ok := o.Float64("opt:target"); ok {
		r.obj.Target = &target
	}
	if mode, ok := o.String("opt:objective_mode_name"); ok {
		m, err := strategy.ParseMode(mode)
		if err != nil {
			return strategy.NewError(strategy.KindConfigInvalid, err.Error(), err)
		}
		r.obj.Mode = m
	}
	if tol, ok := o.Float64("opt:global_rel_tolerance"); ok {
		r.obj.GlobalRelTolerance = tol
	}
	if seed, ok := o.Int("random:seed"); ok {
		s := int64(seed)
		r.seed = &s
	}
	if w, ok := o.Int("random:workers"); ok && w > 0 {
		r.workers = w
	}
	if ob, ok := o["observer"]; ok {
		if obs, ok := ob.(strategy.Observer); ok {
			r.obs = obs
		}
	}
	return nil
}

func (r *Random) GetConfiguration() strategy.Options {
	o := strategy.New()
	o["children"] = []string{}
	o["thread_safe"] = true
	return o
}

func randomLoss(actual, target float64) float64 { return math.Abs(target - actual) }

func (r *Random) earlyExit(best float64, haveBest bool) bool {
	if !haveBest || r.obj.Target == nil {
		return false
	}
	target := *r.obj.Target
	switch r.obj.Mode {
	case strategy.ModeMin:
		return best < target
	case strategy.ModeMax:
		return best > target
	case strategy.ModeTarget:
		band := randomLoss(target*(1-r.obj.GlobalRelTolerance), target)
		return randomLoss(best, target) < band
	default:
		return false
	}
}

func (r *Random) better(candidate, best float64, haveBest bool) bool {
	if !haveBest {
		return true
	}
	switch r.obj.Mode {
	case strategy.ModeMax:
		return candidate > best
	case strategy.ModeTarget:
		target := 0.0
		if r.obj.Target != nil {
			target = *r.obj.Target
		}
		return randomLoss(candidate, target) < randomLoss(best, target)
	default: // Min, None
		return candidate < best
	}
}

func (r *Random) Search(eval strategy.EvalFunc, stop *strategy.StopToken) strategy.SearchResult {
	if stop.StopRequested() {
		return strategy.SearchResult{Status: 0, Msg: "stop requested before first evaluation"}
	}
	if len(r.bounds.Lower) == 0 {
		return strategy.SearchResult{Status: 1, Msg: "random requires bounds"}
	}
	seed := time.Now().UnixNano()
	if r.seed != nil {
		seed = *r.seed
	}
	rng := rand.New(rand.NewSource(seed))

	budget := strategy.NewBudget(r.maxIterations, r.maxSeconds)
	n := r.maxIterations
	if n <= 0 {
		n = 1
	}

	dims := len(r.bounds.Lower)
	samples := make([]strategy.ParameterVector, n)
	for i := 0; i < n; i++ {
		x := make(strategy.ParameterVector, dims)
		for d := 0; d < dims; d++ {
			x[d] = r.bounds.Lower[d] + rng.Float64()*(r.bounds.Upper[d]-r.bounds.Lower[d])
			if r.bounds.Integral(d) {
				x[d] = math.Round(x[d])
			}
		}
		samples[i] = x
	}

	q := queue.New(r.workers, stop)
	tasks := make([]queue.Task, len(samples))
	for i, x := range samples {
		tasks[i] = queue.Task{ID: "", Payload: x}
	}

	var best strategy.ParameterVector
	var bestOut strategy.MeasurementVector
	haveBest := false
	var evalErr error

	type sample struct {
		X   strategy.ParameterVector
		Out strategy.MeasurementVector
	}

	r.obs.BeginSearch()
	worker := func(t queue.Task, h queue.TaskHandle) (any, error) {
		if h.StopRequested() {
			return nil, nil
		}
		x := t.Payload.(strategy.ParameterVector)
		r.obs.BeginIter(x)
		out, err := eval(x)
		if err == nil {
			r.obs.EndIter(x, out)
		}
		return sample{X: x, Out: out}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	master := func(resp queue.TaskResponse, h queue.Handle) {
		budget.Tick()
		if resp.Err != nil {
			evalErr = resp.Err
			h.RequestStop()
			return
		}
		s, ok := resp.Payload.(sample)
		if !ok || s.Out == nil {
			return
		}
		primary := s.Out.Primary()
		if r.better(primary, bestOutPrimary(bestOut), haveBest) {
			haveBest = true
			best = s.X
			bestOut = s.Out
		}
		if r.earlyExit(primary, true) || budget.Exceeded() {
			stop.RequestStop()
			h.RequestStop()
		}
	}
	q.Run(ctx, tasks, worker, master)

	r.obs.EndSearch(best, bestOut)
	if evalErr != nil {
		return strategy.SearchResult{Inputs: best, Output: bestOut, Status: 1, Msg: evalErr.Error()}
	}
	if budget.TimeExceeded() {
		return strategy.SearchResult{Inputs: best, Output: bestOut, Status: -2, Msg: "time-limit exceeded"}
	}
	return strategy.SearchResult{Inputs: best, Output: bestOut, Status: 0}
}

func bestOutPrimary(m strategy.MeasurementVector) float64 {
	if m == nil {
		return 0
	}
	return m.Primary()
}

func (r *Random) Clone() strategy.Strategy {
	cp := *r
	cp.bounds.Lower = append([]float64(nil), r.bounds.Lower...)
	cp.bounds.Upper = append([]float64(nil), r.bounds.Upper...)
	return &cp
}

func (r *Random) SetName(prefix string) { r.name = prefix }
func (r *Random) Name() string          { return r.name }

var _ strategy.Strategy = (*Random)(nil)
