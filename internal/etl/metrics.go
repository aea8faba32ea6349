package etl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments snapshot fetches. A nil *Metrics is valid and records nothing.
type Metrics struct {
	fetches     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rowsDropped *prometheus.CounterVec
	cellErrors  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodewatch",
			Name:      "snapshot_fetches_total",
			Help:      "Snapshot fetches by source and outcome.",
		}, []string{"source", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nodewatch",
			Name:      "snapshot_fetch_duration_seconds",
			Help:      "Wall time of snapshot fetches.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodewatch",
			Name:      "normalizer_rows_dropped_total",
			Help:      "Raw rows discarded for having fewer cells than the schema.",
		}, []string{"source"}),
		cellErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodewatch",
			Name:      "cell_errors_total",
			Help:      "Cells rendered as an error placeholder after a per-item failure.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.duration, m.rowsDropped, m.cellErrors)
	}
	return m
}

func (m *Metrics) observeFetch(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, status).Inc()
	m.duration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveDropped counts rows dropped by the normalizer.
func (m *Metrics) ObserveDropped(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsDropped.WithLabelValues(source).Add(float64(n))
}

// ObserveCellErrors counts per-item failures that were recovered in place.
func (m *Metrics) ObserveCellErrors(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cellErrors.WithLabelValues(source).Add(float64(n))
}
