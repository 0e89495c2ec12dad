package sink

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NANATribe/iomt-fhir/metric"
)

// sinkMetrics holds Prometheus metrics for measurement delivery.
type sinkMetrics struct {
	batchSubmission *prometheus.HistogramVec // submission latency by partition
	batchSize       prometheus.Histogram
	published       *prometheus.CounterVec // measurements delivered, by partition
	errors          *prometheus.CounterVec // by error_type
}

// newSinkMetrics creates and registers sink metrics with the provided
// registry. A nil registry disables metrics.
func newSinkMetrics(registry *metric.MetricsRegistry) (*sinkMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &sinkMetrics{
		batchSubmission: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "iomt",
			Subsystem:   "sink",
			Name:        "measurement_batch_submission_ms",
			Help:        "Latency of one measurement batch submission in milliseconds",
			Buckets:     []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryLatency, metric.LabelOperation: metric.OperationNormalization},
		}, []string{metric.LabelPartition}),

		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "iomt",
			Subsystem:   "sink",
			Name:        "measurement_batch_size",
			Help:        "Number of measurements per batch submission",
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryTraffic, metric.LabelOperation: metric.OperationNormalization},
		}),

		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "iomt",
			Subsystem:   "sink",
			Name:        "measurements_published_total",
			Help:        "Total measurements delivered to the downstream stream",
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryTraffic, metric.LabelOperation: metric.OperationNormalization},
		}, []string{metric.LabelPartition}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "iomt",
			Subsystem:   "sink",
			Name:        "errors_total",
			Help:        "Total sink delivery errors",
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryErrors, metric.LabelOperation: metric.OperationNormalization},
		}, []string{metric.LabelErrorType}),
	}

	if err := registry.RegisterHistogramVec("sink", "measurement_batch_submission_ms", m.batchSubmission); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("sink", "measurement_batch_size", m.batchSize); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("sink", "measurements_published", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("sink", "errors", m.errors); err != nil {
		return nil, err
	}
	return m, nil
}

// recordSubmission records one successful batch flush.
func (m *sinkMetrics) recordSubmission(partition string, size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchSubmission.WithLabelValues(partition).Observe(float64(duration.Milliseconds()))
	m.batchSize.Observe(float64(size))
	m.published.WithLabelValues(partition).Add(float64(size))
}

// recordError records one delivery failure.
func (m *sinkMetrics) recordError(errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errorType).Inc()
}
