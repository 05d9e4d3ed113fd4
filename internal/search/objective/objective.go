// Package objective implements the objective-combination layer: mapping a
// MeasurementVector produced by an evaluation into the scalar a strategy
// optimizes, according to a selection rule (first element, user script,
// weighted, target-distance). The registry/factory shape mirrors the
// strategy registry (strategy.Registry): string id -> factory closure,
// looked up once per search.
package objective

import (
	"fmt"
	"math"
	"sync"

	"tunecore/internal/search/strategy"
)

// Reducer collapses a measurement vector to a scalar objective.
type Reducer interface {
	Reduce(m strategy.MeasurementVector) (float64, error)
}

// ReducerFunc adapts a function to Reducer.
type ReducerFunc func(m strategy.MeasurementVector) (float64, error)

func (f ReducerFunc) Reduce(m strategy.MeasurementVector) (float64, error) { return f(m) }

// Factory builds a Reducer from reducer-specific options.
type Factory func(opts strategy.Options) (Reducer, error)

// Registry is a process-wide mapping from reducer id to factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the built-in reducers:
// "first" (first element, the default), "weighted", "target_distance", and
// "script" (a user-supplied Go closure registered by id via RegisterScript).
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("first", newFirstReducer)
	r.Register("weighted", newWeightedReducer)
	r.Register("target_distance", newTargetDistanceReducer)
	r.Register("script", newScriptReducer)
	return r
}

// Register adds or replaces the factory for id.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Instantiate builds a Reducer for id using opts.
func (r *Registry) Instantiate(id string, opts strategy.Options) (Reducer, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, strategy.NewError(strategy.KindConfigInvalid, fmt.Sprintf("unknown reducer id %q", id), nil)
	}
	return f(opts)
}

func newFirstReducer(strategy.Options) (Reducer, error) {
	return ReducerFunc(func(m strategy.MeasurementVector) (float64, error) {
		if len(m) == 0 {
			return 0, fmt.Errorf("objective: empty measurement vector")
		}
		return m[0], nil
	}), nil
}

// weighted reducer: dot-product of measurement vector with reducer_weights.
func newWeightedReducer(opts strategy.Options) (Reducer, error) {
	weights, ok := opts.Float64Slice("reducer_weights")
	if !ok || len(weights) == 0 {
		return nil, strategy.NewError(strategy.KindConfigInvalid, "weighted reducer requires reducer_weights", nil)
	}
	w := append([]float64(nil), weights...)
	return ReducerFunc(func(m strategy.MeasurementVector) (float64, error) {
		if len(m) != len(w) {
			return 0, fmt.Errorf("objective: measurement vector length %d != weights length %d", len(m), len(w))
		}
		var sum float64
		for i, v := range m {
			sum += v * w[i]
		}
		return sum, nil
	}), nil
}

// target_distance reducer: -|measurement[0] - target|, so maximizing the
// reducer output is equivalent to minimizing distance to target.
func newTargetDistanceReducer(opts strategy.Options) (Reducer, error) {
	target, ok := opts.Float64("target")
	if !ok {
		return nil, strategy.NewError(strategy.KindConfigInvalid, "target_distance reducer requires target", nil)
	}
	return ReducerFunc(func(m strategy.MeasurementVector) (float64, error) {
		if len(m) == 0 {
			return 0, fmt.Errorf("objective: empty measurement vector")
		}
		return -math.Abs(m[0] - target), nil
	}), nil
}

// ScriptFunc is a user-supplied reducer closure, registered by name so
// configuration can select it with the "script" reducer id (the host's
// opt:reducer_name) plus a "reducer_script_name" key.
type ScriptFunc func(m strategy.MeasurementVector) (float64, error)

var (
	scriptsMu sync.RWMutex
	scripts   = make(map[string]ScriptFunc)
)

// RegisterScript registers a named Go reducer closure, usable from
// configuration via reducer_script_name. Rather than embedding a
// script interpreter, callers supply a compiled closure up front and
// reference it by name.
func RegisterScript(name string, f ScriptFunc) {
	scriptsMu.Lock()
	defer scriptsMu.Unlock()
	scripts[name] = f
}

func newScriptReducer(opts strategy.Options) (Reducer, error) {
	name, ok := opts.String("reducer_script_name")
	if !ok {
		return nil, strategy.NewError(strategy.KindConfigInvalid, "script reducer requires reducer_script_name", nil)
	}
	scriptsMu.RLock()
	f, ok := scripts[name]
	scriptsMu.RUnlock()
	if !ok {
		return nil, strategy.NewError(strategy.KindConfigInvalid, fmt.Sprintf("unregistered reducer script %q", name), nil)
	}
	return ReducerFunc(f), nil
}

var Default = NewRegistry()
