package router

import "sync/atomic"

// Metrics counts routing outcomes. Counters are atomic so the health endpoint
// can read them while routes are in flight.
type Metrics struct {
	routed             atomic.Int64
	replied            atomic.Int64
	fallbacks          atomic.Int64
	generationFailures atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Routed             int64 `json:"routed"`
	Replied            int64 `json:"replied"`
	Fallbacks          int64 `json:"fallbacks"`
	GenerationFailures int64 `json:"generation_failures"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Routed:             m.routed.Load(),
		Replied:            m.replied.Load(),
		Fallbacks:          m.fallbacks.Load(),
		GenerationFailures: m.generationFailures.Load(),
	}
}
