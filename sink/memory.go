package sink

import (
	"context"
	"sync"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/measurement"
)

// MemoryCollector is an in-process Collector used by tests and local runs.
type MemoryCollector struct {
	mu      sync.Mutex
	buf     []measurement.Measurement
	flushed []measurement.Measurement

	// FailFlush makes every Flush fail with a sink-unavailable error
	// while retaining the buffer.
	FailFlush bool
}

// NewMemoryCollector returns an empty in-memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Add buffers one measurement.
func (c *MemoryCollector) Add(_ context.Context, m measurement.Measurement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, m)
	return nil
}

// Flush moves buffered measurements to the flushed set.
func (c *MemoryCollector) Flush(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailFlush {
		return errors.WrapTransient(errors.ErrSinkUnavailable, "MemoryCollector", "Flush", "flush measurements")
	}
	c.flushed = append(c.flushed, c.buf...)
	c.buf = nil
	return nil
}

// Buffered returns measurements awaiting flush.
func (c *MemoryCollector) Buffered() []measurement.Measurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]measurement.Measurement(nil), c.buf...)
}

// Flushed returns every measurement delivered so far.
func (c *MemoryCollector) Flushed() []measurement.Measurement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]measurement.Measurement(nil), c.flushed...)
}
