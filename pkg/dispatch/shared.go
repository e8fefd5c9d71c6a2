package dispatch

import (
	"math"
	"sync"
	"sync/atomic"
)

// MaxTracker keeps a running maximum updated by many goroutines without
// locks.
type MaxTracker struct {
	bits atomic.Uint64
}

// NewMaxTracker starts at -Inf.
func NewMaxTracker() *MaxTracker {
	m := &MaxTracker{}
	m.bits.Store(math.Float64bits(math.Inf(-1)))
	return m
}

// Update raises the maximum to v if larger and reports whether it did.
// NaN is ignored.
func (m *MaxTracker) Update(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	for {
		old := m.bits.Load()
		if v <= math.Float64frombits(old) {
			return false
		}
		if m.bits.CompareAndSwap(old, math.Float64bits(v)) {
			return true
		}
	}
}

// Load returns the current maximum.
func (m *MaxTracker) Load() float64 {
	return math.Float64frombits(m.bits.Load())
}

// OutlierSet collects sparse records from concurrent workers.
type OutlierSet[K comparable, V any] struct {
	m sync.Map
	n atomic.Int64
}

// Store records v under k. An existing record is kept and false returned.
func (s *OutlierSet[K, V]) Store(k K, v V) bool {
	if _, loaded := s.m.LoadOrStore(k, v); loaded {
		return false
	}
	s.n.Add(1)
	return true
}

func (s *OutlierSet[K, V]) Load(k K) (V, bool) {
	v, ok := s.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (s *OutlierSet[K, V]) Len() int { return int(s.n.Load()) }

// Snapshot copies the records into a plain map. Call it after the batch has
// joined for a consistent view.
func (s *OutlierSet[K, V]) Snapshot() map[K]V {
	out := make(map[K]V, s.Len())
	s.m.Range(func(k, v any) bool {
		out[k.(K)] = v.(V)
		return true
	})
	return out
}
