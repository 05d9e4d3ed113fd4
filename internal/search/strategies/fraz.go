package strategies

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"tunecore/internal/search/strategy"
)

func init() {
	strategy.Default().Register("fraz", func() strategy.Strategy { return NewFraz() })
}

// The clamp bounds keep the optimizer's internal arithmetic away from
// overflow: the most-negative/most-positive finite float64 scaled by
// 1e-10, so sums and differences of losses stay finite.
var (
	frazClampLo = -math.MaxFloat64 * 1e-10
	frazClampHi = math.MaxFloat64 * 1e-10
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Fraz wraps a global derivative-free minimizer supporting box bounds,
// integrality flags, prior function evaluations, a max function-call and
// wall-time budget, local refinement tolerance, and a cooperative stop
// predicate.
type Fraz struct {
	name              string
	bounds            strategy.Bounds
	obj               strategy.ObjectiveSpec
	maxIterations     int
	maxSeconds        int
	localRelTolerance float64
	nthreads          int
	threadSafe        bool
	interIteration    uint32
	evaluations       [][]float64
	obs               strategy.Observer
}

func NewFraz() *Fraz {
	return &Fraz{nthreads: 1, obs: strategy.NoopObserver{}}
}

func (f *Fraz) GetOptions() strategy.Options {
	o := strategy.New()
	o["opt:lower_bound"] = append([]float64(nil), f.bounds.Lower...)
	o["opt:upper_bound"] = append([]float64(nil), f.bounds.Upper...)
	o["opt:is_integral"] = append([]bool(nil), f.bounds.IsIntegral...)
	if f.obj.Target != nil {
		o["opt:target"] = *f.obj.Target
	}
	o["opt:max_iterations"] = f.maxIterations
	o["opt:max_seconds"] = f.maxSeconds
	o["opt:local_rel_tolerance"] = f.localRelTolerance
	o["fraz:nthreads"] = f.nthreads
	o["opt:inter_iteration"] = f.interIteration
	return o
}

func (f *Fraz) SetOptions(o strategy.Options) error {
	if lower, ok := o.Float64Slice("opt:lower_bound"); ok {
		f.bounds.Lower = lower
	}
	if upper, ok := o.Float64Slice("opt:upper_bound"); ok {
		f.bounds.Upper = upper
	}
	if isInt, ok := o.BoolSlice("opt:is_integral"); ok {
		f.bounds.IsIntegral = isInt
	}
	if err := f.bounds.Validate(); err != nil {
		return strategy.NewError(strategy.KindConfigInvalid, err.Error(), err)
	}
	if target, ok := o.Float64("opt:target"); ok {
		f.obj.Target = &target
	}
	if mode, ok := o.String("opt:objective_mode_name"); ok {
		m, err := strategy.ParseMode(mode)
		if err != nil {
			return strategy.NewError(strategy.KindConfigInvalid, err.Error(), err)
		}
		f.obj.Mode = m
	}
	if tol, ok := o.Float64("opt:global_rel_tolerance"); ok {
		f.obj.GlobalRelTolerance = tol
	}
	if tol, ok := o.Float64("opt:local_rel_tolerance"); ok {
		f.localRelTolerance = tol
	}
	if mi, ok := o.Int("opt:max_iterations"); ok {
		f.maxIterations = mi
	}
	if ms, ok := o.Int("opt:max_seconds"); ok {
		f.maxSeconds = ms
	}
	if nt, ok := o.Int("fraz:nthreads"); ok && nt > 0 {
		f.nthreads = nt
	}
	if ts, ok := o.Bool("compressor:thread_safe"); ok {
		f.threadSafe = ts
	}
	if ii, ok := o.Int("opt:inter_iteration"); ok {
		f.interIteration = uint32(ii)
	}
	if table, ok := o.Table2D("opt:evaluations"); ok {
		f.evaluations = table
	}
	if ob, ok := o["observer"]; ok {
		if obs, ok := ob.(strategy.Observer); ok {
			f.obs = obs
		}
	}
	return nil
}

func (f *Fraz) GetConfiguration() strategy.Options {
	o := strategy.New()
	o["children"] = []string{}
	o["thread_safe"] = f.threadSafe
	return o
}

// lossAt computes the clamped loss the optimizer minimizes for a raw
// primary measurement fx, per mode.
func (f *Fraz) lossAt(fx float64) float64 {
	switch f.obj.Mode {
	case strategy.ModeTarget:
		target := 0.0
		if f.obj.Target != nil {
			target = *f.obj.Target
		}
		return f.lossAtTarget(fx, target)
	case strategy.ModeMax:
		return -clamp(fx, frazClampLo, frazClampHi)
	default: // Min, None
		return clamp(fx, frazClampLo, frazClampHi)
	}
}

func (f *Fraz) earlyExitThreshold() (float64, bool) {
	if f.obj.Mode != strategy.ModeTarget || f.obj.Target == nil {
		return 0, false
	}
	target := *f.obj.Target
	tol := f.obj.GlobalRelTolerance
	lo := f.lossAtTarget(target*(1-tol), target)
	hi := f.lossAtTarget(target*(1+tol), target)
	return math.Min(lo, hi), true
}

func (f *Fraz) lossAtTarget(fx, target float64) float64 {
	d := target - fx
	return clamp(d*d, 0, frazClampHi)
}

func (f *Fraz) earlyExit(fxRaw float64, loss float64) bool {
	switch f.obj.Mode {
	case strategy.ModeTarget:
		threshold, ok := f.earlyExitThreshold()
		return ok && loss < threshold
	case strategy.ModeMin:
		return f.obj.Target != nil && fxRaw < *f.obj.Target
	case strategy.ModeMax:
		return f.obj.Target != nil && fxRaw > *f.obj.Target
	default:
		return false
	}
}

type frazPoint struct {
	x    strategy.ParameterVector
	out  strategy.MeasurementVector
	raw  float64
	loss float64
}

func (f *Fraz) clampToBounds(x strategy.ParameterVector) {
	for i := range x {
		x[i] = clamp(x[i], f.bounds.Lower[i], f.bounds.Upper[i])
		if f.bounds.Integral(i) {
			x[i] = math.Round(x[i])
		}
	}
}

func (f *Fraz) Search(eval strategy.EvalFunc, stop *strategy.StopToken) strategy.SearchResult {
	if stop.StopRequested() {
		return strategy.SearchResult{Status: 0, Msg: "stop requested before first evaluation"}
	}
	if len(f.bounds.Lower) == 0 {
		return strategy.SearchResult{Status: 1, Msg: "fraz requires bounds"}
	}

	cache := strategy.NewEvaluationCache()
	dims := len(f.bounds.Lower)
	budget := strategy.NewBudget(f.maxIterations, f.maxSeconds)

	var best *frazPoint
	var mu sync.Mutex
	adopt := func(p frazPoint) {
		mu.Lock()
		defer mu.Unlock()
		if best == nil || p.loss < best.loss {
			cp := p
			best = &cp
		}
	}

	// Fold prior evaluations: each row is x (n cols) + y (1 col).
	for _, row := range f.evaluations {
		if len(row) != dims+1 {
			continue
		}
		x := strategy.ParameterVector(append([]float64(nil), row[:dims]...))
		y := row[dims]
		out := strategy.MeasurementVector{y}
		cache.Put(x, out)
		adopt(frazPoint{x: x, out: out, raw: y, loss: f.lossAt(y)})
	}
	if best != nil && f.earlyExit(best.raw, best.loss) {
		f.obs.BeginSearch()
		f.obs.EndSearch(best.x, best.out)
		return strategy.SearchResult{Inputs: best.x, Output: best.out, Status: 0, Msg: "prior evaluation already satisfies tolerance"}
	}

	f.obs.BeginSearch()

	nthreads := f.nthreads
	if !f.threadSafe || nthreads < 1 {
		nthreads = 1
	}
	sem := semaphore.NewWeighted(int64(nthreads))
	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	evalOne := func(x strategy.ParameterVector) (frazPoint, error, bool) {
		f.clampToBounds(x)
		if cached, ok := cache.Get(x); ok {
			raw := cached.Primary()
			return frazPoint{x: x, out: cached, raw: raw, loss: f.lossAt(raw)}, nil, false
		}
		f.obs.BeginIter(x)
		out, err := eval(x)
		if err != nil {
			return frazPoint{}, err, false
		}
		f.obs.EndIter(x, out)
		cache.Put(x, out)
		raw := out.Primary()
		return frazPoint{x: x, out: out, raw: raw, loss: f.lossAt(raw)}, nil, true
	}

	var evalErr error
	var errOnce sync.Once
	setErr := func(err error) {
		errOnce.Do(func() { evalErr = err })
	}

	runBatch := func(candidates []strategy.ParameterVector) {
		var wg sync.WaitGroup
		for _, c := range candidates {
			if evalErr != nil {
				break
			}
			_ = sem.Acquire(ctx, 1)
			// Acquiring the semaphore happens-after the previously dispatched
			// candidate released it, so this is the freshest point at which to
			// honor a stop raised mid-batch:
			// with inter_iteration disabled (the default), a batch already in
			// flight runs to completion once started; enabling it trades that
			// for stopping at the next candidate boundary instead of waiting
			// for the whole batch.
			if f.interIteration != 0 && stop.StopRequested() {
				sem.Release(1)
				break
			}
			wg.Add(1)
			go func(x strategy.ParameterVector) {
				defer sem.Release(1)
				defer wg.Done()
				p, err, counted := evalOne(x)
				if err != nil {
					setErr(err)
					return
				}
				if counted {
					mu.Lock()
					budget.Tick()
					mu.Unlock()
				}
				adopt(p)
			}(c)
		}
		wg.Wait()
	}

	// Initial population: a coarse random scatter across the box.
	population := 4 * dims
	if population < nthreads {
		population = nthreads
	}
	if f.maxIterations > 0 && population > f.maxIterations {
		population = f.maxIterations
	}
	initial := make([]strategy.ParameterVector, population)
	for i := range initial {
		x := make(strategy.ParameterVector, dims)
		for d := 0; d < dims; d++ {
			x[d] = f.bounds.Lower[d] + rng.Float64()*(f.bounds.Upper[d]-f.bounds.Lower[d])
		}
		initial[i] = x
	}
	runBatch(initial)

	// Iterative local refinement around the current best, shrinking the
	// step size as the local tolerance is approached.
	step := 0.25
	minStep := f.localRelTolerance
	if minStep <= 0 {
		minStep = 1e-6
	}
	for !stop.StopRequested() && evalErr == nil && !budget.Exceeded() && (best == nil || !f.earlyExit(best.raw, best.loss)) {
		if step < minStep {
			break
		}
		mu.Lock()
		anchor := best
		mu.Unlock()
		if anchor == nil {
			break
		}
		batch := make([]strategy.ParameterVector, 0, nthreads)
		for i := 0; i < nthreads; i++ {
			x := make(strategy.ParameterVector, dims)
			for d := 0; d < dims; d++ {
				span := f.bounds.Upper[d] - f.bounds.Lower[d]
				x[d] = anchor.x[d] + (rng.Float64()*2-1)*step*span
			}
			batch = append(batch, x)
		}
		runBatch(batch)
		step *= 0.7
	}

	f.obs.EndSearch(best.safeX(), best.safeOut())
	if evalErr != nil {
		return strategy.SearchResult{Inputs: best.safeX(), Output: best.safeOut(), Status: 1, Msg: evalErr.Error()}
	}
	if best == nil {
		return strategy.SearchResult{Status: 1, Msg: "fraz produced no successful evaluation"}
	}
	if budget.TimeExceeded() {
		return strategy.SearchResult{Inputs: best.x, Output: best.out, Status: -2, Msg: "time-limit exceeded"}
	}
	if budget.IterationsExceeded() {
		return strategy.SearchResult{Inputs: best.x, Output: best.out, Status: -1, Msg: "iterations exceeded"}
	}
	return strategy.SearchResult{Inputs: best.x, Output: best.out, Status: 0}
}

func (p *frazPoint) safeX() strategy.ParameterVector {
	if p == nil {
		return nil
	}
	return p.x
}

func (p *frazPoint) safeOut() strategy.MeasurementVector {
	if p == nil {
		return nil
	}
	return p.out
}

func (f *Fraz) Clone() strategy.Strategy {
	cp := *f
	cp.bounds.Lower = append([]float64(nil), f.bounds.Lower...)
	cp.bounds.Upper = append([]float64(nil), f.bounds.Upper...)
	cp.bounds.IsIntegral = append([]bool(nil), f.bounds.IsIntegral...)
	if f.obj.Target != nil {
		t := *f.obj.Target
		cp.obj.Target = &t
	}
	cp.evaluations = make([][]float64, len(f.evaluations))
	for i, row := range f.evaluations {
		cp.evaluations[i] = append([]float64(nil), row...)
	}
	return &cp
}

func (f *Fraz) SetName(prefix string) { f.name = prefix }
func (f *Fraz) Name() string          { return f.name }

var _ strategy.Strategy = (*Fraz)(nil)
