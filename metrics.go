package gosortable

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of an Engine.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ShiftedRowsTotal  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sortable",
				Name:      "operations_total",
				Help:      "Total rank operations by operation and status.",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sortable",
				Name:      "operation_duration_seconds",
				Help:      "Rank operation latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),
		ShiftedRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sortable",
				Name:      "shifted_rows_total",
				Help:      "Total records whose rank was shifted by bulk updates.",
			},
			[]string{"operation"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.OperationsTotal,
			m.OperationDuration,
			m.ShiftedRowsTotal,
		)
	}

	return m
}

func (m *Metrics) observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) shifted(operation string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}

	m.ShiftedRowsTotal.WithLabelValues(operation).Add(float64(rows))
}
