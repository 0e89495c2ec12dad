package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/measurement"
	"github.com/NANATribe/iomt-fhir/metric"
	"github.com/NANATribe/iomt-fhir/natsclient"
	"github.com/NANATribe/iomt-fhir/pkg/retry"
)

// StreamPublisher is the slice of the NATS client the collector needs.
type StreamPublisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

var _ StreamPublisher = (*natsclient.Client)(nil)

// JetStreamCollector buffers measurements and flushes them to a JetStream
// subject, one message per measurement, in Add order. Transient publish
// failures are retried; a flush that still fails keeps the buffer intact and
// surfaces a batch-level sink error.
type JetStreamCollector struct {
	publisher StreamPublisher
	subject   string
	timeout   time.Duration
	retryCfg  retry.Config
	logger    *slog.Logger
	metrics   *sinkMetrics

	mu  sync.Mutex
	buf []measurement.Measurement
}

// NewJetStreamCollector builds a collector publishing to subject. The
// registry may be nil to disable metrics.
func NewJetStreamCollector(publisher StreamPublisher, subject string, flushTimeout time.Duration,
	logger *slog.Logger, registry *metric.MetricsRegistry) (*JetStreamCollector, error) {
	if publisher == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("publisher cannot be nil"),
			"JetStreamCollector", "NewJetStreamCollector", "check publisher")
	}
	if subject == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("subject cannot be empty"),
			"JetStreamCollector", "NewJetStreamCollector", "check subject")
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newSinkMetrics(registry)
	if err != nil {
		return nil, errors.WrapFatal(err, "JetStreamCollector", "NewJetStreamCollector", "register metrics")
	}

	return &JetStreamCollector{
		publisher: publisher,
		subject:   subject,
		timeout:   flushTimeout,
		retryCfg:  retry.Quick(),
		logger:    logger.With("component", "sink"),
		metrics:   metrics,
	}, nil
}

// SetRetryConfig overrides the per-publish retry policy.
func (c *JetStreamCollector) SetRetryConfig(cfg retry.Config) {
	c.retryCfg = cfg
}

// Add buffers one measurement for the next flush.
func (c *JetStreamCollector) Add(_ context.Context, m measurement.Measurement) error {
	if err := m.Validate(); err != nil {
		return errors.WrapInvalid(err, "JetStreamCollector", "Add", "validate measurement")
	}
	c.mu.Lock()
	c.buf = append(c.buf, m)
	c.mu.Unlock()
	return nil
}

// Buffered returns the number of measurements awaiting flush.
func (c *JetStreamCollector) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Flush publishes every buffered measurement. On success the buffer is
// cleared; on failure it is retained for a batch-level retry and the error
// is classified sink-unavailable. Records already published before the
// failure are not retracted, the downstream contract is at-least-once.
func (c *JetStreamCollector) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := c.buf
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	partition := pending[0].Ingress.Partition

	for i, m := range pending {
		data, err := json.Marshal(m)
		if err != nil {
			c.metrics.recordError("marshal")
			return errors.WrapFatal(err, "JetStreamCollector", "Flush", "marshal measurement")
		}

		err = retry.Do(ctx, c.retryCfg, func() error {
			return c.publisher.PublishToStream(ctx, c.subject, data)
		})
		if err != nil {
			c.metrics.recordError("publish")
			c.logger.Error("measurement batch flush failed",
				"published", i, "pending", len(pending)-i, "error", err)
			return errors.WrapTransient(
				fmt.Errorf("%w: %w", errors.ErrSinkUnavailable, err),
				"JetStreamCollector", "Flush", "publish measurement")
		}
	}

	c.mu.Lock()
	c.buf = c.buf[len(pending):]
	c.mu.Unlock()

	duration := time.Since(start)
	c.metrics.recordSubmission(partition, len(pending), duration)
	c.logger.Debug("measurement batch flushed",
		"count", len(pending), "duration_ms", duration.Milliseconds())
	return nil
}
