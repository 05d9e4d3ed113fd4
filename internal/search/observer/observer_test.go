package observer

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunecore/internal/search/strategy"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) record(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) BeginSearch()                       { r.record("begin_search") }
func (r *recordingObserver) BeginIter(strategy.ParameterVector) { r.record("begin_iter") }
func (r *recordingObserver) EndIter(strategy.ParameterVector, strategy.MeasurementVector) {
	r.record("end_iter")
}
func (r *recordingObserver) EndSearch(strategy.ParameterVector, strategy.MeasurementVector) {
	r.record("end_search")
}

func TestComposite_FansOutToAllChildrenInOrder(t *testing.T) {
	t.Parallel()
	c := New()
	a := &recordingObserver{}
	b := &recordingObserver{}
	c.Add("a", a)
	c.Add("b", b)

	c.BeginSearch()
	c.BeginIter(strategy.ParameterVector{1})
	c.EndIter(strategy.ParameterVector{1}, strategy.MeasurementVector{2})
	c.EndSearch(strategy.ParameterVector{1}, strategy.MeasurementVector{2})

	want := []string{"begin_search", "begin_iter", "end_iter", "end_search"}
	assert.Equal(t, want, a.events)
	assert.Equal(t, want, b.events)
}

func TestComposite_EmptyComposite_NoPanic(t *testing.T) {
	t.Parallel()
	c := New()
	assert.NotPanics(t, func() {
		c.BeginSearch()
		c.EndSearch(nil, nil)
	})
}

func TestComposite_ConcurrentEvents_NoRace(t *testing.T) {
	t.Parallel()
	c := New()
	rec := &recordingObserver{}
	c.Add("rec", rec)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(x float64) {
			defer wg.Done()
			c.BeginIter(strategy.ParameterVector{x})
			c.EndIter(strategy.ParameterVector{x}, strategy.MeasurementVector{x})
		}(float64(i))
	}
	wg.Wait()
	assert.Len(t, rec.events, 40)
}

type memSink struct {
	mu          sync.Mutex
	inputNames  []string
	outputNames []string
	rows        []Row
	calls       int
}

func (s *memSink) Write(ctx context.Context, inputNames, outputNames []string, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.inputNames = inputNames
	s.outputNames = outputNames
	s.rows = rows
	return nil
}

func TestRecorder_BuffersRowsAndFlushesAtEndSearch(t *testing.T) {
	t.Parallel()
	sink := &memSink{}
	r := NewRecorder(sink, []string{"x"}, []string{"cr"})

	r.BeginSearch()
	r.EndIter(strategy.ParameterVector{0.1}, strategy.MeasurementVector{10})
	r.EndIter(strategy.ParameterVector{0.2}, strategy.MeasurementVector{20})
	assert.Equal(t, 0, sink.calls, "sink must not be written before end_search")

	r.EndSearch(strategy.ParameterVector{0.2}, strategy.MeasurementVector{20})
	require.Equal(t, 1, sink.calls)
	require.Len(t, sink.rows, 2)
	assert.Equal(t, []float64{0.1}, sink.rows[0].Inputs)
	assert.Equal(t, []float64{20}, sink.rows[1].Outputs)
	assert.Equal(t, []string{"x"}, sink.inputNames)
	assert.Equal(t, []string{"cr"}, sink.outputNames)
}

func TestRecorder_Suppress_DropsRows(t *testing.T) {
	t.Parallel()
	sink := &memSink{}
	r := NewRecorder(sink, []string{"x"}, []string{"cr"})
	r.Suppress(true)
	r.EndIter(strategy.ParameterVector{0.1}, strategy.MeasurementVector{10})
	r.EndSearch(strategy.ParameterVector{0.1}, strategy.MeasurementVector{10})
	require.Equal(t, 1, sink.calls)
	assert.Empty(t, sink.rows)
}

func TestRecorder_NilSink_NoPanic(t *testing.T) {
	t.Parallel()
	r := NewRecorder(nil, []string{"x"}, []string{"cr"})
	r.EndIter(strategy.ParameterVector{0.1}, strategy.MeasurementVector{10})
	assert.NotPanics(t, func() {
		r.EndSearch(strategy.ParameterVector{0.1}, strategy.MeasurementVector{10})
	})
}

func TestProgressPrinter_WritesOneLinePerEvent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, 0, 1)
	p.BeginSearch()
	p.BeginIter(strategy.ParameterVector{1})
	p.EndIter(strategy.ParameterVector{1}, strategy.MeasurementVector{2})
	p.EndSearch(strategy.ParameterVector{1}, strategy.MeasurementVector{2})

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, out, "search started")
	assert.Contains(t, out, "evaluating")
	assert.Contains(t, out, "evaluated")
	assert.Contains(t, out, "search finished")
}

func TestProgressPrinter_LabelsRankWhenSizeGreaterThanOne(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, 3, 4)
	p.BeginSearch()
	assert.Contains(t, buf.String(), "rank=3")
	assert.Contains(t, buf.String(), "size=4")
}

func TestProgressPrinter_NoRankLabelWhenSizeOne(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, 0, 1)
	p.BeginSearch()
	assert.NotContains(t, buf.String(), "rank=")
}
