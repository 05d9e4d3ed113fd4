package observer

import (
	"context"
	"sync"

	"tunecore/internal/search/strategy"
)

// Row is one recorded evaluation: the concatenation of inputs and
// outputs, in the order they ended.
type Row struct {
	Inputs  []float64
	Outputs []float64
}

// Sink is a pluggable trace-file backend selected by
// record_search:io_format (csv, postgres, s3).
type Sink interface {
	// Write persists the full set of rows with the given header names.
	Write(ctx context.Context, inputNames, outputNames []string, rows []Row) error
}

// Recorder buffers rows in memory during a search and writes them through
// a pluggable Sink at end_search, matching the "buffer per worker, merge
// at end_search" model. There is exactly one buffer, holding the events
// observed in this process; evaluations run by separate Kafka worker
// processes are not gathered into it.
type Recorder struct {
	mu          sync.Mutex
	inputNames  []string
	outputNames []string
	rows        []Row
	sink        Sink
	suppressed  bool
}

// NewRecorder returns a recorder that will write through sink at
// end_search.
func NewRecorder(sink Sink, inputNames, outputNames []string) *Recorder {
	return &Recorder{sink: sink, inputNames: inputNames, outputNames: outputNames}
}

// Suppress disables recording: while set, EndIter adds no row. (The
// host's best-replay does not need it, since it bypasses the observers.)
func (r *Recorder) Suppress(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed = v
}

func (r *Recorder) BeginSearch() {}

func (r *Recorder) BeginIter(strategy.ParameterVector) {}

func (r *Recorder) EndIter(x strategy.ParameterVector, m strategy.MeasurementVector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.suppressed {
		return
	}
	r.rows = append(r.rows, Row{Inputs: append([]float64(nil), x...), Outputs: append([]float64(nil), m...)})
}

func (r *Recorder) EndSearch(x strategy.ParameterVector, m strategy.MeasurementVector) {
	r.mu.Lock()
	rows := append([]Row(nil), r.rows...)
	sink := r.sink
	inputNames := r.inputNames
	outputNames := r.outputNames
	r.mu.Unlock()
	if sink == nil {
		return
	}
	_ = sink.Write(context.Background(), inputNames, outputNames, rows)
}

var _ strategy.Observer = (*Recorder)(nil)
