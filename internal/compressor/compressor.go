// Package compressor defines the Compressor trait: the external,
// out-of-scope collaborator a search strategy tunes. tunecore treats the
// underlying compression library as a black box exposed through this
// narrow interface.
package compressor

import "context"

// Metrics is the compressor's metrics bag: named measurements produced by
// the most recent compress/decompress call. A missing or non-numeric
// metric is reported via Get's boolean, not a panic or a silent zero
// value.
type Metrics map[string]float64

// Get reads a named metric.
func (m Metrics) Get(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Compressor is the trait exposed by the underlying lossy compression
// library: compress, decompress, settings I/O, metrics readback, and
// cloning for thread-safe concurrent evaluation.
type Compressor interface {
	// Name identifies the compressor implementation (e.g. "sz3", "zfp").
	Name() string
	// Options returns the current compressor settings.
	Options() map[string]any
	// SetOptions applies named settings (e.g. "abs_error_bound" -> 1e-3).
	// An implementation may reject unknown names with an error; Mock
	// accepts any name.
	SetOptions(settings map[string]any) error
	// Compress runs forward compression on the configured input. The
	// input/output buffers are opaque to the search engine.
	Compress(ctx context.Context) error
	// Decompress runs reconstruction, only invoked when do_decompress is
	// set.
	Decompress(ctx context.Context) error
	// MetricsResults returns the metrics bag populated by the most recent
	// Compress/Decompress call.
	MetricsResults() Metrics
	// ThreadSafe reports whether concurrent Clone()s may run Compress
	// concurrently. fraz does not call it: its thread pool is gated by the
	// "compressor:thread_safe" option instead.
	ThreadSafe() bool
	// Clone returns an independent copy suitable for concurrent use by a
	// different evaluation thread.
	Clone() Compressor
}
