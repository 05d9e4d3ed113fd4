// Package host implements the thin host-compressor shell: it
// builds the strategy tree from options, constructs the compress_fn
// closure that bridges a ParameterVector to the underlying Compressor,
// wraps the objective-combination reducer around the raw measurement
// vector, and replays the winning configuration once the search
// completes so the final output buffer reflects the best inputs.
package host

import (
	"context"
	"fmt"

	"tunecore/internal/compressor"
	"tunecore/internal/search/objective"
	"tunecore/internal/search/strategy"
)

// Host owns one compressor prototype, the tree built from options, and
// the reducer used to scalarize measurements.
type Host struct {
	proto          compressor.Compressor
	tree           strategy.Strategy
	reducer        objective.Reducer
	inputSettings  []string
	outputSettings []string
	doDecompress   bool
	stop           *strategy.StopToken
}

// Build constructs a Host from options: opt:compressor (resolved
// externally into proto), opt:search (strategy id), opt:inputs,
// opt:output, opt:do_decompress, and the reducer selection
// (opt:reducer_name, default "first").
func Build(opts strategy.Options, proto compressor.Compressor, reg *strategy.Registry, objReg *objective.Registry) (*Host, error) {
	inputs, ok := opts.StringSlice("opt:inputs")
	if !ok || len(inputs) == 0 {
		return nil, strategy.NewError(strategy.KindConfigInvalid, "missing opt:inputs", nil)
	}
	outputs, ok := opts.StringSlice("opt:output")
	if !ok || len(outputs) == 0 {
		return nil, strategy.NewError(strategy.KindConfigInvalid, "missing opt:output", nil)
	}

	searchID, ok := opts.String("opt:search")
	if !ok || searchID == "" {
		return nil, strategy.NewError(strategy.KindConfigInvalid, "missing opt:search", nil)
	}
	tree, err := reg.Instantiate(searchID)
	if err != nil {
		return nil, err
	}
	tree.SetName(searchID)

	if err := tree.SetOptions(opts); err != nil {
		return nil, err
	}

	reducerName, ok := opts.String("opt:reducer_name")
	if !ok || reducerName == "" {
		reducerName = "first"
	}
	reducer, err := objReg.Instantiate(reducerName, opts)
	if err != nil {
		return nil, err
	}

	doDecompress, _ := opts.Bool("opt:do_decompress")

	return &Host{
		proto:          proto,
		tree:           tree,
		reducer:        reducer,
		inputSettings:  inputs,
		outputSettings: outputs,
		doDecompress:   doDecompress,
		stop:           strategy.NewStopToken(),
	}, nil
}

// BuildEvaluator constructs just the compress_fn closure, with no
// strategy tree, so a distributed worker process can re-create its own
// evaluator from the same opt:compressor/opt:inputs/opt:output/opt:reducer
// configuration the master used, rather than carrying the master's live
// EvalFunc closure across the wire (it cannot be marshaled: it closes over
// an in-process Compressor instance).
func BuildEvaluator(opts strategy.Options, proto compressor.Compressor, objReg *objective.Registry) (strategy.EvalFunc, error) {
	inputs, ok := opts.StringSlice("opt:inputs")
	if !ok || len(inputs) == 0 {
		return nil, strategy.NewError(strategy.KindConfigInvalid, "missing opt:inputs", nil)
	}
	outputs, ok := opts.StringSlice("opt:output")
	if !ok || len(outputs) == 0 {
		return nil, strategy.NewError(strategy.KindConfigInvalid, "missing opt:output", nil)
	}
	reducerName, ok := opts.String("opt:reducer_name")
	if !ok || reducerName == "" {
		reducerName = "first"
	}
	reducer, err := objReg.Instantiate(reducerName, opts)
	if err != nil {
		return nil, err
	}
	doDecompress, _ := opts.Bool("opt:do_decompress")
	h := &Host{
		proto:          proto,
		reducer:        reducer,
		inputSettings:  inputs,
		outputSettings: outputs,
		doDecompress:   doDecompress,
	}
	return h.compressFn(context.Background()), nil
}

// StopToken returns the token driving this host's search, so a caller
// (e.g. an observer, or a signal handler) can request cooperative
// cancellation.
func (h *Host) StopToken() *strategy.StopToken { return h.stop }

// evalRaw configures a compressor clone from x, runs it, and reads the
// named output metrics into a raw MeasurementVector (no reduction).
func (h *Host) evalRaw(ctx context.Context, x strategy.ParameterVector) (strategy.MeasurementVector, error) {
	if len(x) != len(h.inputSettings) {
		return nil, strategy.NewError(strategy.KindConfigInvalid, fmt.Sprintf("input vector length %d != opt:inputs length %d", len(x), len(h.inputSettings)), nil)
	}
	clone := h.proto.Clone()
	settings := make(map[string]any, len(h.inputSettings))
	for i, name := range h.inputSettings {
		settings[name] = x[i]
	}
	if err := clone.SetOptions(settings); err != nil {
		return nil, strategy.NewError(strategy.KindEvaluator, "compressor rejected settings", err)
	}
	if err := clone.Compress(ctx); err != nil {
		return nil, strategy.NewError(strategy.KindEvaluator, "compress failed", err)
	}
	if h.doDecompress {
		if err := clone.Decompress(ctx); err != nil {
			return nil, strategy.NewError(strategy.KindEvaluator, "decompress failed", err)
		}
	}
	metrics := clone.MetricsResults()
	raw := make(strategy.MeasurementVector, len(h.outputSettings))
	for i, name := range h.outputSettings {
		v, ok := metrics.Get(name)
		if !ok {
			return nil, strategy.NewError(strategy.KindEvaluator, fmt.Sprintf("missing or non-numeric metric %q", name), nil)
		}
		raw[i] = v
	}
	return raw, nil
}

// compressFn is the eval closure handed to the strategy tree: it reduces
// the raw measurement vector to a scalar (element 0) and preserves the
// full raw vector after it, so SearchResult.Output reports both the
// optimized scalar and every named metric.
func (h *Host) compressFn(ctx context.Context) strategy.EvalFunc {
	return func(x strategy.ParameterVector) (strategy.MeasurementVector, error) {
		raw, err := h.evalRaw(ctx, x)
		if err != nil {
			return nil, err
		}
		scalar, err := h.reducer.Reduce(raw)
		if err != nil {
			return nil, strategy.NewError(strategy.KindEvaluator, "reducer failed", err)
		}
		out := make(strategy.MeasurementVector, 0, len(raw)+1)
		out = append(out, scalar)
		out = append(out, raw...)
		return out, nil
	}
}

// Run invokes the strategy tree and replays the winning configuration so
// the compressor prototype's final settings reflect the best inputs.
// Replay happens outside the strategy tree so it never triggers a
// spurious observer iteration.
func (h *Host) Run(ctx context.Context) strategy.SearchResult {
	result := h.tree.Search(h.compressFn(ctx), h.stop)
	if result.Status == 0 && len(result.Inputs) > 0 {
		// The replay applies the winning inputs to the prototype itself (not a
		// clone) and runs it once more, so its settings and output reflect them.
		err := fmt.Errorf("input vector length %d != opt:inputs length %d", len(result.Inputs), len(h.inputSettings))
		if len(result.Inputs) == len(h.inputSettings) {
			settings := make(map[string]any, len(h.inputSettings))
			for i, name := range h.inputSettings {
				settings[name] = result.Inputs[i]
			}
			if err = h.proto.SetOptions(settings); err == nil {
				err = h.proto.Compress(ctx)
			}
			if err == nil && h.doDecompress {
				err = h.proto.Decompress(ctx)
			}
		}
		if err != nil {
			result.Status = 1
			result.Msg = fmt.Sprintf("best-replay failed: %v", err)
		}
	}
	return result
}
