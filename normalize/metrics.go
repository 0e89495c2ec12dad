package normalize

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NANATribe/iomt-fhir/metric"
)

// iomtMetrics holds Prometheus metrics for the normalization stages. Metric
// names follow the connector's established telemetry vocabulary so existing
// dashboards keep working.
type iomtMetrics struct {
	deviceEvent        *prometheus.CounterVec // inbound events, by partition
	normalizedEvent    *prometheus.CounterVec // events yielding measurements
	droppedEvent       *prometheus.CounterVec // events yielding nothing
	measurementCount   *prometheus.CounterVec // produced measurements
	measurementGroup   *prometheus.CounterVec // successful (event, template) extractions
	ingressSizeBytes   *prometheus.CounterVec // payload bytes, by partition
	processingLatency  *prometheus.HistogramVec // enqueue-to-sink-submission, by partition
	batchDuration      prometheus.Histogram
	templateGeneration prometheus.Histogram
	handledException   *prometheus.CounterVec // by error_type, stage
	unhandledException *prometheus.CounterVec // by error_type, stage
}

func trafficOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   "iomt",
		Subsystem:   "normalize",
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryTraffic, metric.LabelOperation: metric.OperationNormalization},
	}
}

// newIomtMetrics creates and registers normalization metrics with the
// provided registry. A nil registry disables metrics.
func newIomtMetrics(registry *metric.MetricsRegistry) (*iomtMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &iomtMetrics{
		deviceEvent: prometheus.NewCounterVec(
			trafficOpts("device_event_total", "Total device events received"),
			[]string{metric.LabelPartition}),
		normalizedEvent: prometheus.NewCounterVec(
			trafficOpts("normalized_event_total", "Total events that produced at least one measurement"),
			[]string{metric.LabelPartition}),
		droppedEvent: prometheus.NewCounterVec(
			trafficOpts("dropped_event_total", "Total events that produced no measurements"),
			[]string{metric.LabelPartition}),
		measurementCount: prometheus.NewCounterVec(
			trafficOpts("measurement_total", "Total normalized measurements produced"),
			[]string{metric.LabelPartition}),
		measurementGroup: prometheus.NewCounterVec(
			trafficOpts("measurement_group_total", "Total successful event and template extractions"),
			[]string{metric.LabelPartition}),
		ingressSizeBytes: prometheus.NewCounterVec(
			trafficOpts("device_ingress_size_bytes_total", "Total device event payload bytes received"),
			[]string{metric.LabelPartition}),

		processingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "iomt",
			Subsystem:   "normalize",
			Name:        "device_event_processing_latency_ms",
			Help:        "Latency from event enqueue to measurement sink submission in milliseconds",
			Buckets:     []float64{10, 50, 100, 500, 1000, 5000, 30000, 60000, 300000},
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryLatency, metric.LabelOperation: metric.OperationNormalization},
		}, []string{metric.LabelPartition}),

		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "iomt",
			Subsystem:   "normalize",
			Name:        "normalization_time_per_batch_ms",
			Help:        "Time to normalize one batch in milliseconds",
			Buckets:     []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryLatency, metric.LabelOperation: metric.OperationNormalization},
		}),

		templateGeneration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "iomt",
			Subsystem:   "normalize",
			Name:        "normalization_template_generation_ms",
			Help:        "Time to build the template collection from its document in milliseconds",
			Buckets:     []float64{1, 5, 10, 50, 100, 500, 1000},
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryLatency, metric.LabelOperation: metric.OperationNormalization},
		}),

		handledException: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "iomt",
			Subsystem:   "normalize",
			Name:        "handled_exception_total",
			Help:        "Total recoverable processing failures",
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryErrors, metric.LabelOperation: metric.OperationNormalization},
		}, []string{metric.LabelErrorType, metric.LabelStage}),

		unhandledException: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "iomt",
			Subsystem:   "normalize",
			Name:        "unhandled_exception_total",
			Help:        "Total panics recovered at the event boundary",
			ConstLabels: prometheus.Labels{metric.LabelCategory: metric.CategoryErrors, metric.LabelOperation: metric.OperationNormalization},
		}, []string{metric.LabelErrorType, metric.LabelStage}),
	}

	registrations := []struct {
		name string
		err  error
	}{
		{"device_event", registry.RegisterCounterVec("normalize", "device_event", m.deviceEvent)},
		{"normalized_event", registry.RegisterCounterVec("normalize", "normalized_event", m.normalizedEvent)},
		{"dropped_event", registry.RegisterCounterVec("normalize", "dropped_event", m.droppedEvent)},
		{"measurement", registry.RegisterCounterVec("normalize", "measurement", m.measurementCount)},
		{"measurement_group", registry.RegisterCounterVec("normalize", "measurement_group", m.measurementGroup)},
		{"device_ingress_size", registry.RegisterCounterVec("normalize", "device_ingress_size", m.ingressSizeBytes)},
		{"processing_latency", registry.RegisterHistogramVec("normalize", "processing_latency", m.processingLatency)},
		{"batch_duration", registry.RegisterHistogram("normalize", "batch_duration", m.batchDuration)},
		{"template_generation", registry.RegisterHistogram("normalize", "template_generation", m.templateGeneration)},
		{"handled_exception", registry.RegisterCounterVec("normalize", "handled_exception", m.handledException)},
		{"unhandled_exception", registry.RegisterCounterVec("normalize", "unhandled_exception", m.unhandledException)},
	}
	for _, r := range registrations {
		if r.err != nil {
			return nil, r.err
		}
	}
	return m, nil
}

func (m *iomtMetrics) recordDeviceEvent(partition string, sizeBytes int) {
	if m == nil {
		return
	}
	m.deviceEvent.WithLabelValues(partition).Inc()
	m.ingressSizeBytes.WithLabelValues(partition).Add(float64(sizeBytes))
}

func (m *iomtMetrics) recordNormalizedEvent(partition string, measurements int) {
	if m == nil {
		return
	}
	m.normalizedEvent.WithLabelValues(partition).Inc()
	m.measurementCount.WithLabelValues(partition).Add(float64(measurements))
}

func (m *iomtMetrics) recordDroppedEvent(partition string) {
	if m == nil {
		return
	}
	m.droppedEvent.WithLabelValues(partition).Inc()
}

func (m *iomtMetrics) recordMeasurementGroup(partition string) {
	if m == nil {
		return
	}
	m.measurementGroup.WithLabelValues(partition).Inc()
}

func (m *iomtMetrics) recordProcessingLatency(partition string, latency time.Duration) {
	if m == nil {
		return
	}
	m.processingLatency.WithLabelValues(partition).Observe(float64(latency.Milliseconds()))
}

func (m *iomtMetrics) recordBatchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(float64(d.Milliseconds()))
}

func (m *iomtMetrics) recordTemplateGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.templateGeneration.Observe(float64(d.Milliseconds()))
}

func (m *iomtMetrics) recordHandledException(errorType, stage string) {
	if m == nil {
		return
	}
	m.handledException.WithLabelValues(errorType, stage).Inc()
}

func (m *iomtMetrics) recordUnhandledException(errorType, stage string) {
	if m == nil {
		return
	}
	m.unhandledException.WithLabelValues(errorType, stage).Inc()
}
