// Package metrics exposes Prometheus counters for the taxpayer module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	created      prometheus.Counter
	verified     prometheus.Counter
	bulkImported prometheus.Counter
	bulkSize     prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxgate_taxpayers_created_total",
			Help: "Total taxpayer profiles created, including bulk imports",
		}),
		verified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxgate_taxpayers_verified_total",
			Help: "Total taxpayer profiles verified",
		}),
		bulkImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxgate_taxpayer_bulk_imports_total",
			Help: "Total bulk import batches accepted",
		}),
		bulkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxgate_taxpayer_bulk_import_size",
			Help:    "Accepted bulk import batch sizes",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

func (m *Metrics) IncCreated(n int) {
	if m == nil {
		return
	}
	m.created.Add(float64(n))
}

func (m *Metrics) IncVerified() {
	if m == nil {
		return
	}
	m.verified.Inc()
}

func (m *Metrics) ObserveBulkImport(size int) {
	if m == nil {
		return
	}
	m.bulkImported.Inc()
	m.bulkSize.Observe(float64(size))
}
