// Package metrics exposes Prometheus metrics for the authorization core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the authorization counters.
type Metrics struct {
	Decisions    *prometheus.CounterVec
	Operations   *prometheus.CounterVec
	AuthRejected prometheus.Counter
}

// New creates and registers the authz metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taxgate_authz_decisions_total",
			Help: "Policy engine decisions by outcome",
		}, []string{"outcome", "resource_type", "action"}),
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taxgate_authz_operations_total",
			Help: "Wrapped business operations by terminal outcome",
		}, []string{"outcome", "resource_type", "action"}),
		AuthRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxgate_authz_rejected_authentications_total",
			Help: "Requests rejected before any policy decision (bad token or disabled account)",
		}),
	}
}

// IncDecision records a policy decision outcome ("allowed" or "denied").
func (m *Metrics) IncDecision(outcome, resourceType, action string) {
	m.Decisions.WithLabelValues(outcome, resourceType, action).Inc()
}

// IncOperation records a wrapped operation outcome ("succeeded" or "failed").
func (m *Metrics) IncOperation(outcome, resourceType, action string) {
	m.Operations.WithLabelValues(outcome, resourceType, action).Inc()
}

// IncAuthRejected records a rejected authentication attempt.
func (m *Metrics) IncAuthRejected() { m.AuthRejected.Inc() }
