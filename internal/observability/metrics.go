package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stations_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL job.
type Metrics struct {
	RecordsRead     prometheus.Counter
	RecordsWritten  prometheus.Counter
	RecordsRejected *prometheus.CounterVec // labels: kind={parse_error,schema_violation,field_extraction,unexpected}

	Partitions        *prometheus.CounterVec // labels: status={committed,failed}
	PartitionDuration prometheus.Histogram
	JobRunning        prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Total input lines handed to workers.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Total records routed to the primary channel.",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Total records routed to the error channel, by failure kind.",
		}, []string{"kind"}),
		Partitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_total",
			Help:      "Partitions finished, by status.",
		}, []string{"status"}),
		PartitionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_duration_seconds",
			Help:      "Wall time from worker init to partition commit.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		JobRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      "1 while the job is processing partitions, 0 otherwise.",
		}),
	}
}

// NewMetrics creates and registers all job metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsRead,
		m.RecordsWritten,
		m.RecordsRejected,
		m.Partitions,
		m.PartitionDuration,
		m.JobRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
