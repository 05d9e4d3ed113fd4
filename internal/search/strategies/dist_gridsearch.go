package strategies

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"tunecore/internal/queue"
	"tunecore/internal/search/strategy"
)

func init() {
	strategy.Default().Register("dist_gridsearch", func() strategy.Strategy { return NewDistGridsearch(nil) })
}

// DistGridsearch partitions bounds into a multidimensional grid with
// overlap and runs a clone of the inner strategy per cell across a worker
// pool.
type DistGridsearch struct {
	name    string
	bounds  strategy.Bounds
	obj     strategy.ObjectiveSpec
	numBins []int
	overlap []float64
	inner   strategy.Strategy
	innerID string
	workers int
	obs     strategy.Observer

	distributed bool
	kafka       *queue.KafkaTransport
}

// NewDistGridsearch wraps inner (the per-cell prototype, cloned once per
// cell). If inner is nil, "dist_gridsearch:search" must supply one.
func NewDistGridsearch(inner strategy.Strategy) *DistGridsearch {
	return &DistGridsearch{inner: inner, workers: 1, obs: strategy.NoopObserver{}}
}

func (d *DistGridsearch) GetOptions() strategy.Options {
	o := strategy.New()
	o["opt:lower_bound"] = append([]float64(nil), d.bounds.Lower...)
	o["opt:upper_bound"] = append([]float64(nil), d.bounds.Upper...)
	o["dist_gridsearch:num_bins"] = append([]int(nil), d.numBins...)
	o["dist_gridsearch:overlap_percentage"] = append([]float64(nil), d.overlap...)
	return o
}

func (d *DistGridsearch) SetOptions(o strategy.Options) error {
	if lower, ok := o.Float64Slice("opt:lower_bound"); ok {
		d.bounds.Lower = lower
	}
	if upper, ok := o.Float64Slice("opt:upper_bound"); ok {
		d.bounds.Upper = upper
	}
	if err := d.bounds.Validate(); err != nil {
		return strategy.NewError(strategy.KindConfigInvalid, err.Error(), err)
	}
	if bins, ok := o.IntSlice("dist_gridsearch:num_bins"); ok {
		d.numBins = bins
	}
	if ov, ok := o.Float64Slice("dist_gridsearch:overlap_percentage"); ok {
		d.overlap = ov
	}
	if target, ok := o.Float64("opt:target"); ok {
		d.obj.Target = &target
	}
	if mode, ok := o.String("opt:objective_mode_name"); ok {
		m, err := strategy.ParseMode(mode)
		if err != nil {
			return strategy.NewError(strategy.KindConfigInvalid, err.Error(), err)
		}
		d.obj.Mode = m
	}
	if tol, ok := o.Float64("opt:global_rel_tolerance"); ok {
		d.obj.GlobalRelTolerance = tol
	}
	if w, ok := o.Int("dist_gridsearch:workers"); ok && w > 0 {
		d.workers = w
	}
	if id, ok := o.String("dist_gridsearch:search"); ok {
		inner, err := strategy.Default().Instantiate(id)
		if err != nil {
			return err
		}
		d.inner = inner
		d.innerID = id
	}
	if ob, ok := o["observer"]; ok {
		if obs, ok := ob.(strategy.Observer); ok {
			d.obs = obs
		}
	}
	if v, ok := o.Bool("dist_gridsearch:distributed"); ok {
		d.distributed = v
	}
	if t, ok := o["distributed:transport"]; ok {
		if kt, ok := t.(*queue.KafkaTransport); ok {
			d.kafka = kt
		}
	}
	return nil
}

func (d *DistGridsearch) GetConfiguration() strategy.Options {
	o := strategy.New()
	children := []string{}
	if d.inner != nil {
		children = append(children, d.inner.Name())
	}
	o["children"] = children
	o["thread_safe"] = true
	return o
}

// cellBounds computes the bounds for bin index b per dimension d.
func (d *DistGridsearch) cellBounds(b []int) strategy.Bounds {
	n := len(d.bounds.Lower)
	lower := make([]float64, n)
	upper := make([]float64, n)
	for dim := 0; dim < n; dim++ {
		step := (d.bounds.Upper[dim] - d.bounds.Lower[dim]) / float64(d.numBins[dim])
		overlap := d.overlap[dim] * step
		lower[dim] = math.Max(d.bounds.Lower[dim], d.bounds.Lower[dim]+step*float64(b[dim])-overlap)
		upper[dim] = math.Min(d.bounds.Upper[dim], d.bounds.Lower[dim]+step*float64(b[dim]+1)+overlap)
	}
	return strategy.Bounds{Lower: lower, Upper: upper, IsIntegral: d.bounds.IsIntegral}
}

// cells enumerates the lexicographic Cartesian product of bin indices.
func (d *DistGridsearch) cells() [][]int {
	n := len(d.numBins)
	total := 1
	for _, nb := range d.numBins {
		total *= nb
	}
	out := make([][]int, 0, total)
	idx := make([]int, n)
	for {
		out = append(out, append([]int(nil), idx...))
		pos := n - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < d.numBins[pos] {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out
}

type gridCellResult struct {
	bounds strategy.Bounds
	res    strategy.SearchResult
}

// gridAccumulator folds cell results into a running best, per the
// objective mode's adopt rule, and reports whether the target band has
// closed enough to stop dispatching further cells. It is shared by
// the in-process and distributed dispatch paths so the fold logic is
// identical regardless of transport.
type gridAccumulator struct {
	obj      strategy.ObjectiveSpec
	haveBest bool
	best     strategy.ParameterVector
	bestOut  strategy.MeasurementVector
	status   int
	msg      string
}

func (a *gridAccumulator) loss(actual, target float64) float64 { return math.Abs(target - actual) }

// offer folds res in if it improves on the current best. It returns true
// when the objective's target band has closed, meaning the caller should
// stop dispatching further cells.
func (a *gridAccumulator) offer(res strategy.SearchResult) bool {
	if res.Status != 0 || len(res.Output) == 0 {
		// Non-zero status responses are dropped from the best-fold; they
		// are not passed to any observer either.
		return false
	}
	primary := res.Output.Primary()

	adopt := false
	closedBand := false
	switch a.obj.Mode {
	case strategy.ModeMax:
		adopt = !a.haveBest || primary > a.bestOut.Primary()
	case strategy.ModeMin:
		adopt = !a.haveBest || primary < a.bestOut.Primary()
	case strategy.ModeTarget:
		target := 0.0
		if a.obj.Target != nil {
			target = *a.obj.Target
		}
		if !a.haveBest {
			adopt = true
		} else {
			adopt = a.loss(primary, target) < a.loss(a.bestOut.Primary(), target)
		}
		if a.haveBest || adopt {
			band := a.loss(target*(1-a.obj.GlobalRelTolerance), target)
			if adopt && a.loss(primary, target) < band {
				closedBand = true
			}
		}
	case strategy.ModeNone:
		adopt = !a.haveBest
	default:
		panic(fmt.Sprintf("dist_gridsearch: unreachable objective mode %v", a.obj.Mode))
	}

	if adopt {
		a.haveBest = true
		a.best = res.Inputs
		a.bestOut = res.Output
		a.status = res.Status
		a.msg = res.Msg
	}
	return closedBand
}

func (d *DistGridsearch) Search(eval strategy.EvalFunc, stop *strategy.StopToken) strategy.SearchResult {
	if stop.StopRequested() {
		return strategy.SearchResult{Status: 0, Msg: "stop requested before first evaluation"}
	}
	if len(d.numBins) == 0 {
		return strategy.SearchResult{Status: 1, Msg: "not configured with non-empty bin sizes"}
	}
	if len(d.numBins) != len(d.bounds.Lower) || len(d.overlap) != len(d.bounds.Lower) {
		return strategy.SearchResult{Status: 1, Msg: "different sizes"}
	}

	if d.distributed && d.kafka != nil {
		if d.innerID == "" {
			return strategy.SearchResult{Status: 1, Msg: "dist_gridsearch: distributed mode requires dist_gridsearch:search (a registry id), not a pre-built inner strategy"}
		}
		d.obs.BeginSearch()
		return d.searchDistributed(stop)
	}

	if d.inner == nil {
		return strategy.SearchResult{Status: 1, Msg: "dist_gridsearch requires an inner strategy (dist_gridsearch:search)"}
	}

	d.obs.BeginSearch()

	tasks := make([]queue.Task, 0)
	for _, b := range d.cells() {
		tasks = append(tasks, queue.Task{Payload: d.cellBounds(b)})
	}

	q := queue.New(d.workers, stop)

	worker := func(t queue.Task, h queue.TaskHandle) (any, error) {
		cellBounds := t.Payload.(strategy.Bounds)
		cell := d.inner.Clone()
		cellOpts := strategy.New()
		cellOpts["opt:lower_bound"] = cellBounds.Lower
		cellOpts["opt:upper_bound"] = cellBounds.Upper
		if d.obj.Target != nil {
			cellOpts["opt:target"] = *d.obj.Target
		}
		cellOpts["opt:objective_mode_name"] = d.obj.Mode.String()
		cellOpts["opt:global_rel_tolerance"] = d.obj.GlobalRelTolerance
		if err := cell.SetOptions(cellOpts); err != nil {
			return gridCellResult{bounds: cellBounds, res: strategy.SearchResult{Status: 1, Msg: err.Error()}}, nil
		}
		res := cell.Search(eval, stop)
		return gridCellResult{bounds: cellBounds, res: res}, nil
	}

	acc := &gridAccumulator{obj: d.obj}

	master := func(resp queue.TaskResponse, h queue.Handle) {
		gr, ok := resp.Payload.(gridCellResult)
		if !ok {
			return
		}
		if acc.offer(gr.res) {
			stop.RequestStop()
			h.RequestStop()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Run(ctx, tasks, worker, master)

	d.obs.EndSearch(acc.best, acc.bestOut)
	if !acc.haveBest {
		return strategy.SearchResult{Status: 1, Msg: "no cell produced a successful result"}
	}
	return strategy.SearchResult{Inputs: acc.best, Output: acc.bestOut, Status: acc.status, Msg: acc.msg}
}

// searchDistributed dispatches one GridCellTask per cell over the Kafka
// transport instead of the in-process queue, for when cells are evaluated
// by separate worker processes.
// Each worker rebuilds its own inner strategy (by d.innerID) and its own
// evaluator (host.BuildEvaluator) rather than sharing this process's eval
// closure, which cannot cross the wire.
func (d *DistGridsearch) searchDistributed(stop *strategy.StopToken) strategy.SearchResult {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cells := d.cells()
	pending := len(cells)
	if pending == 0 {
		return strategy.SearchResult{Status: 1, Msg: "not configured with non-empty bin sizes"}
	}

	for _, b := range cells {
		task := GridCellTask{
			Bounds:             d.cellBounds(b),
			InnerID:            d.innerID,
			ObjectiveMode:      d.obj.Mode.String(),
			Target:             d.obj.Target,
			GlobalRelTolerance: d.obj.GlobalRelTolerance,
		}
		if _, err := d.kafka.Produce(ctx, task); err != nil {
			return strategy.SearchResult{Status: 1, Msg: fmt.Sprintf("dist_gridsearch: produce cell task: %v", err)}
		}
	}

	acc := &gridAccumulator{obj: d.obj}
	fold := func(resp queue.TaskResponse) {
		pending--
		if resp.Err == nil {
			var gr GridCellResult
			if raw, ok := resp.Payload.(json.RawMessage); ok {
				if err := json.Unmarshal(raw, &gr); err == nil {
					if acc.offer(gr.Result) {
						stop.RequestStop()
					}
				}
			}
		}
		if pending <= 0 || stop.StopRequested() {
			cancel()
		}
	}

	if err := d.kafka.ConsumeResponses(ctx, fold); err != nil && ctx.Err() == nil {
		return strategy.SearchResult{Status: 1, Msg: fmt.Sprintf("dist_gridsearch: consume cell responses: %v", err)}
	}

	d.obs.EndSearch(acc.best, acc.bestOut)
	if !acc.haveBest {
		return strategy.SearchResult{Status: 1, Msg: "no cell produced a successful result"}
	}
	return strategy.SearchResult{Inputs: acc.best, Output: acc.bestOut, Status: acc.status, Msg: acc.msg}
}

func (d *DistGridsearch) Clone() strategy.Strategy {
	cp := *d
	cp.bounds.Lower = append([]float64(nil), d.bounds.Lower...)
	cp.bounds.Upper = append([]float64(nil), d.bounds.Upper...)
	cp.numBins = append([]int(nil), d.numBins...)
	cp.overlap = append([]float64(nil), d.overlap...)
	if d.obj.Target != nil {
		t := *d.obj.Target
		cp.obj.Target = &t
	}
	if d.inner != nil {
		cp.inner = d.inner.Clone()
	}
	return &cp
}

func (d *DistGridsearch) SetName(prefix string) {
	d.name = prefix
	if d.inner != nil {
		d.inner.SetName(prefix + "/" + d.inner.Name())
	}
}
func (d *DistGridsearch) Name() string { return d.name }

var _ strategy.Strategy = (*DistGridsearch)(nil)
