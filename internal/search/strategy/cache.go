package strategy

import (
	"encoding/binary"
	"math"
	"sync"
)

// EvaluationCache maps ParameterVector to MeasurementVector, keyed by
// exact bit-equality of doubles. It is created per search and dropped
// at exit; insertion-only during a run, so a plain mutex-guarded map is
// sufficient (no eviction, no updates).
type EvaluationCache struct {
	mu sync.RWMutex
	m  map[string]MeasurementVector
}

// NewEvaluationCache returns an empty cache.
func NewEvaluationCache() *EvaluationCache {
	return &EvaluationCache{m: make(map[string]MeasurementVector)}
}

func cacheKey(x ParameterVector) string {
	buf := make([]byte, 8*len(x))
	for i, v := range x {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return string(buf)
}

// Get returns the cached measurement for x, if present.
func (c *EvaluationCache) Get(x ParameterVector) (MeasurementVector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[cacheKey(x)]
	return v, ok
}

// Put inserts the measurement for x. Safe for concurrent use across
// fraz's worker threads.
func (c *EvaluationCache) Put(x ParameterVector, m MeasurementVector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[cacheKey(x)] = m
}

// Len returns the number of cached entries.
func (c *EvaluationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Range calls f for every entry. f must not mutate the cache.
func (c *EvaluationCache) Range(f func(x string, m MeasurementVector)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.m {
		f(k, v)
	}
}
