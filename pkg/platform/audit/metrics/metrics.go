// Package metrics exposes Prometheus metrics for the audit pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the audit pipeline counters.
type Metrics struct {
	Writes        prometheus.Counter
	WriteFailures prometheus.Counter
	Dropped       prometheus.Counter
}

// New creates and registers the audit metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Writes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxgate_audit_writes_total",
			Help: "Total audit records durably appended to the store",
		}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxgate_audit_write_failures_total",
			Help: "Total audit store appends that failed and went to the fallback log",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxgate_audit_dropped_total",
			Help: "Total audit records diverted to the fallback log because the async buffer was full",
		}),
	}
}

// IncWrite records a successful store append.
func (m *Metrics) IncWrite() { m.Writes.Inc() }

// IncWriteFailure records a failed store append.
func (m *Metrics) IncWriteFailure() { m.WriteFailures.Inc() }

// IncDropped records an async-buffer overflow.
func (m *Metrics) IncDropped() { m.Dropped.Inc() }
