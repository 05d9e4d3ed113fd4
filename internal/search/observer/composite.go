// Package observer implements the observation bus: a composite
// fan-out of named sinks receiving begin_search/begin_iter/end_iter/
// end_search events, plus the stock sinks (a progress printer, a
// tabular-trace recorder, and an OpenTelemetry metrics/tracing sink).
package observer

import (
	"sync"

	"tunecore/internal/search/strategy"
)

// Named pairs an Observer with a name. Composite stores the names but
// offers no lookup or removal by name.
type Named struct {
	Name     string
	Observer strategy.Observer
}

// Composite fans every event out to an ordered list of child observers.
// Safe for concurrent use: Search's evaluation threads may call
// BeginIter/EndIter concurrently.
type Composite struct {
	mu       sync.Mutex
	children []Named
}

// New returns an empty composite.
func New() *Composite { return &Composite{} }

// Add appends a named child observer.
func (c *Composite) Add(name string, o strategy.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, Named{Name: name, Observer: o})
}

func (c *Composite) snapshot() []Named {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Named, len(c.children))
	copy(out, c.children)
	return out
}

func (c *Composite) BeginSearch() {
	for _, n := range c.snapshot() {
		n.Observer.BeginSearch()
	}
}

func (c *Composite) BeginIter(x strategy.ParameterVector) {
	for _, n := range c.snapshot() {
		n.Observer.BeginIter(x)
	}
}

func (c *Composite) EndIter(x strategy.ParameterVector, m strategy.MeasurementVector) {
	for _, n := range c.snapshot() {
		n.Observer.EndIter(x, m)
	}
}

func (c *Composite) EndSearch(x strategy.ParameterVector, m strategy.MeasurementVector) {
	for _, n := range c.snapshot() {
		n.Observer.EndSearch(x, m)
	}
}

var _ strategy.Observer = (*Composite)(nil)
