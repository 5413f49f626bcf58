package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type importMetrics struct {
	batchesTotal  *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	inFlight      *prometheus.GaugeVec
}

var metricsSingleton = sync.OnceValue(func() *importMetrics {
	return &importMetrics{
		batchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberdesk",
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Total number of finished import batches.",
		}, []string{"type", "status"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberdesk",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Total number of processed import rows by outcome.",
		}, []string{"type", "outcome"}),
		batchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memberdesk",
			Subsystem: "import",
			Name:      "batch_duration_seconds",
			Help:      "Wall time spent processing one import batch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"type"}),
		inFlight: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "memberdesk",
			Subsystem: "import",
			Name:      "batches_in_flight",
			Help:      "Number of import batches currently processing.",
		}, []string{"type"}),
	}
})

func get() *importMetrics {
	return metricsSingleton()
}

// BatchStarted marks a batch as in flight.
func BatchStarted(importType string) {
	get().inFlight.WithLabelValues(importType).Inc()
}

// BatchFinished records the final status and duration of a batch.
func BatchFinished(importType, status string, elapsed time.Duration) {
	m := get()
	m.inFlight.WithLabelValues(importType).Dec()
	m.batchesTotal.WithLabelValues(importType, status).Inc()
	m.batchDuration.WithLabelValues(importType).Observe(elapsed.Seconds())
}

// RowProcessed counts one row outcome ("success" or "error").
func RowProcessed(importType, outcome string) {
	get().rowsTotal.WithLabelValues(importType, outcome).Inc()
}
