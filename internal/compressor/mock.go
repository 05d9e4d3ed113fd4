package compressor

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a deterministic Compressor test double: metrics are
// produced by a pure function of the currently configured settings so
// strategy tests can assert exact outputs without a real compression
// library.
type Mock struct {
	mu       sync.Mutex
	name     string
	settings map[string]any
	metrics  Metrics
	// Compute derives the metrics bag from the current settings. Tests
	// supply closed-form synthetic evaluators here (e.g. f(x) = 100*x).
	Compute func(settings map[string]any) Metrics
	// FailureAfter, if > 0, makes the Nth and every later call to Compress
	// return an error, for exercising the Evaluator error path.
	FailureAfter int
	calls        int
	threadSafe   bool
}

// NewMock returns a Mock compressor named name, computing metrics via
// compute.
func NewMock(name string, compute func(settings map[string]any) Metrics) *Mock {
	return &Mock{name: name, settings: make(map[string]any), Compute: compute, threadSafe: true}
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Options() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out
}

func (m *Mock) SetOptions(settings map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range settings {
		m.settings[k] = v
	}
	return nil
}

func (m *Mock) Compress(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.FailureAfter > 0 && m.calls >= m.FailureAfter {
		return fmt.Errorf("mock compressor: induced failure on call %d", m.calls)
	}
	if m.Compute != nil {
		m.metrics = m.Compute(m.settings)
	}
	return nil
}

func (m *Mock) Decompress(ctx context.Context) error { return nil }

func (m *Mock) MetricsResults() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Metrics, len(m.metrics))
	for k, v := range m.metrics {
		out[k] = v
	}
	return out
}

func (m *Mock) ThreadSafe() bool { return m.threadSafe }

func (m *Mock) Clone() Compressor {
	m.mu.Lock()
	defer m.mu.Unlock()
	settings := make(map[string]any, len(m.settings))
	for k, v := range m.settings {
		settings[k] = v
	}
	return &Mock{name: m.name, settings: settings, Compute: m.Compute, FailureAfter: m.FailureAfter, threadSafe: m.threadSafe}
}

var _ Compressor = (*Mock)(nil)
