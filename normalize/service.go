package normalize

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/event"
	"github.com/NANATribe/iomt-fhir/measurement"
	"github.com/NANATribe/iomt-fhir/metric"
	"github.com/NANATribe/iomt-fhir/pkg/timestamp"
	"github.com/NANATribe/iomt-fhir/pkg/worker"
	"github.com/NANATribe/iomt-fhir/sink"
	"github.com/NANATribe/iomt-fhir/template"
)

// Config holds Service construction parameters.
type Config struct {
	// Logger for service lifecycle and per-event diagnostics. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// Registry receives the normalization metrics. Nil disables metrics.
	Registry *metric.MetricsRegistry

	// Workers bounds per-batch parallelism. Defaults to 4.
	Workers int

	// QueueSize bounds the work queue. Defaults to 256. Events that do
	// not fit are processed inline by the submitting goroutine, so a full
	// queue slows a batch down rather than losing events.
	QueueSize int
}

type eventStatus int

const (
	statusFailed eventStatus = iota
	statusDropped
	statusNormalized
)

type eventOutcome struct {
	status       eventStatus
	measurements []measurement.Measurement
}

type task struct {
	ev       event.DeviceEvent
	snapshot *template.Collection
	outcome  *eventOutcome
	wg       *sync.WaitGroup

	// claimed guards against double processing when ProcessBatch takes
	// over tasks stranded by a pool shutdown.
	claimed atomic.Bool
}

// BatchStats summarizes one ProcessBatch call.
type BatchStats struct {
	Events       int
	Normalized   int
	Dropped      int
	Failed       int
	Measurements int
}

// Service normalizes device events against the loaded template collection.
// Events within a batch are processed in parallel by a bounded worker pool;
// emission to the sink happens afterwards in event order.
type Service struct {
	logger  *slog.Logger
	metrics *iomtMetrics
	pool    *worker.Pool[*task]

	collection atomic.Pointer[template.Collection]
	started    atomic.Bool
}

// NewService builds a Service. Start must be called before ProcessBatch.
func NewService(cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newIomtMetrics(cfg.Registry)
	if err != nil {
		return nil, errors.WrapFatal(err, "NormalizationService", "NewService", "register metrics")
	}

	s := &Service{
		logger:  logger.With("component", "normalize"),
		metrics: metrics,
	}
	s.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, s.runTask,
		worker.WithMetricsRegistry[*task](cfg.Registry, "normalize"))
	return s, nil
}

// Start launches the worker pool.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "NormalizationService", "Start", "start service")
	}
	if err := s.pool.Start(ctx); err != nil {
		s.started.Store(false)
		return errors.WrapFatal(err, "NormalizationService", "Start", "start worker pool")
	}
	s.logger.Info("normalization service started")
	return nil
}

// Stop drains the worker pool.
func (s *Service) Stop(timeout time.Duration) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "NormalizationService", "Stop", "stop worker pool")
	}
	s.logger.Info("normalization service stopped")
	return nil
}

// Reload atomically swaps in a new template collection. Batches already in
// flight keep the snapshot they started with.
func (s *Service) Reload(c *template.Collection) {
	s.collection.Store(c)
	if c != nil {
		s.logger.Info("template collection reloaded", "templates", c.Len(), "mode", c.Mode().String())
	}
}

// ReloadFromDocument builds a collection from raw template text and swaps it
// in, recording the build latency.
func (s *Service) ReloadFromDocument(data []byte, mode template.MatchMode) error {
	start := time.Now()
	c, err := template.Parse(data, mode)
	if err != nil {
		return err
	}
	s.metrics.recordTemplateGeneration(time.Since(start))
	s.Reload(c)
	return nil
}

// Collection returns the current template snapshot, nil before the first
// load.
func (s *Service) Collection() *template.Collection {
	return s.collection.Load()
}

func (s *Service) runTask(ctx context.Context, t *task) error {
	if !t.claimed.CompareAndSwap(false, true) {
		return nil
	}
	defer t.wg.Done()
	*t.outcome = s.processEvent(ctx, t.ev, t.snapshot)
	return nil
}

// ProcessBatch normalizes a batch of events and flushes the resulting
// measurements through the collector. Per-event failures are counted and
// contained; the returned error is batch-level only (no template collection
// loaded, or the sink refusing the flush).
func (s *Service) ProcessBatch(ctx context.Context, events []event.DeviceEvent, collector sink.Collector) (BatchStats, error) {
	stats := BatchStats{Events: len(events)}

	snapshot := s.collection.Load()
	if snapshot == nil {
		return stats, errors.WrapFatal(
			fmt.Errorf("%w: no template collection loaded", errors.ErrNotStarted),
			"NormalizationService", "ProcessBatch", "load template snapshot")
	}
	if len(events) == 0 {
		return stats, nil
	}

	start := time.Now()
	outcomes := make([]eventOutcome, len(events))
	tasks := make([]*task, len(events))

	var wg sync.WaitGroup
	for i := range events {
		s.metrics.recordDeviceEvent(events[i].Partition, events[i].Size())

		wg.Add(1)
		t := &task{ev: events[i], snapshot: snapshot, outcome: &outcomes[i], wg: &wg}
		tasks[i] = t
		if !s.started.Load() || s.pool.Submit(t) != nil {
			// Pool unavailable or queue full: process on this goroutine
			// so the batch never loses an event.
			s.runTask(ctx, t)
		}
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-s.pool.Done():
		// Pool shut down mid-batch. Claim and finish whatever it left
		// behind so the batch always completes.
		for _, t := range tasks {
			s.runTask(ctx, t)
		}
		<-waitDone
	}

	// Emit in event order. Latency observations are deferred until the
	// flush succeeds so the metric covers enqueue through sink submission.
	type pendingLatency struct {
		partition  string
		enqueuedAt int64
	}
	latencies := make([]pendingLatency, 0, len(events))
	for i := range events {
		out := &outcomes[i]
		switch out.status {
		case statusNormalized:
			emitted := 0
			for _, m := range out.measurements {
				if err := collector.Add(ctx, m); err != nil {
					s.metrics.recordHandledException("measurement_invalid", "emit")
					s.logger.Error("measurement rejected by collector",
						"type", m.Type, "sequence", m.Ingress.SequenceNumber, "error", err)
					continue
				}
				emitted++
			}
			if emitted == 0 {
				stats.Dropped++
				s.metrics.recordDroppedEvent(events[i].Partition)
				continue
			}
			stats.Normalized++
			stats.Measurements += emitted
			s.metrics.recordNormalizedEvent(events[i].Partition, emitted)
			latencies = append(latencies, pendingLatency{events[i].Partition, events[i].EnqueuedAt})
		case statusDropped:
			stats.Dropped++
			s.metrics.recordDroppedEvent(events[i].Partition)
		case statusFailed:
			stats.Failed++
		}
	}

	if err := collector.Flush(ctx); err != nil {
		return stats, err
	}
	for _, l := range latencies {
		s.metrics.recordProcessingLatency(l.partition, timestamp.Since(l.enqueuedAt))
	}

	s.metrics.recordBatchDuration(time.Since(start))
	return stats, nil
}

// processEvent runs the per-event state machine: parse, match, extract,
// expand, validate. Panics are recovered here so one poisoned event cannot
// take down a worker.
func (s *Service) processEvent(_ context.Context, ev event.DeviceEvent, snapshot *template.Collection) (outcome eventOutcome) {
	stage := "parse"
	defer func() {
		if r := recover(); r != nil {
			outcome = eventOutcome{status: statusFailed}
			s.metrics.recordUnhandledException(fmt.Sprintf("%T", r), stage)
			s.logger.Error("panic recovered while processing event",
				"stage", stage, "sequence", ev.SequenceNumber, "panic", r)
		}
	}()

	var doc any
	if err := json.Unmarshal(ev.Body, &doc); err != nil {
		s.metrics.recordHandledException("payload_parse", stage)
		s.logger.Debug("event payload failed to parse",
			"sequence", ev.SequenceNumber, "partition", ev.Partition,
			"error", fmt.Errorf("%w: %v", errors.ErrPayloadParse, err))
		return eventOutcome{status: statusFailed}
	}

	stage = "match"
	matched, matchErrs := snapshot.Match(doc)
	for _, err := range matchErrs {
		s.metrics.recordHandledException("expression_evaluation", stage)
		s.logger.Debug("template match evaluation failed",
			"sequence", ev.SequenceNumber, "error", err)
	}
	if len(matched) == 0 {
		return eventOutcome{status: statusDropped}
	}

	var all []measurement.Measurement
	for _, t := range matched {
		stage = "extract"
		res, err := t.Extract(doc)
		if err != nil {
			errorType := "expression_evaluation"
			if stderrors.Is(err, errors.ErrRequiredFieldMissing) {
				errorType = "required_field_missing"
			}
			s.metrics.recordHandledException(errorType, stage)
			s.logger.Debug("extraction failed",
				"template", t.TypeName, "sequence", ev.SequenceNumber, "error", err)
			continue
		}
		s.metrics.recordMeasurementGroup(ev.Partition)

		stage = "expand"
		kept, droppedOccurrences := expand(t.TypeName, res, ev)
		if droppedOccurrences > 0 {
			s.logger.Debug("occurrences failed the required gate",
				"template", t.TypeName, "sequence", ev.SequenceNumber,
				"count", droppedOccurrences, "error", errors.ErrRequiredValueMissing)
		}
		for i := 0; i < droppedOccurrences; i++ {
			s.metrics.recordHandledException("required_value_missing", "validate")
		}
		all = append(all, kept...)
	}

	if len(all) == 0 {
		return eventOutcome{status: statusDropped}
	}
	return eventOutcome{status: statusNormalized, measurements: all}
}
