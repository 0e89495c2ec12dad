// Package ingest assembles the inbound event stream into batches for the
// normalization service. Device events arrive one message at a time; the
// Batcher groups them by count with a time window so a slow trickle still
// flushes promptly.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/event"
	"github.com/NANATribe/iomt-fhir/pkg/timestamp"
)

// Batcher collects device events and emits batches of at most size events,
// or whatever accumulated when the window elapses.
type Batcher struct {
	size   int
	window time.Duration

	partition string
	seq       atomic.Int64

	in      chan event.DeviceEvent
	batches chan []event.DeviceEvent
	started atomic.Bool
}

// NewBatcher builds a batcher for the given partition. Events submitted
// through Accept get their sequence number and enqueue time here, at the
// moment the transport hands them over.
func NewBatcher(size int, window time.Duration, partition string) (*Batcher, error) {
	if size <= 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "Batcher", "NewBatcher", "check batch size")
	}
	if window <= 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "Batcher", "NewBatcher", "check batch window")
	}
	return &Batcher{
		size:      size,
		window:    window,
		partition: partition,
		in:        make(chan event.DeviceEvent, size*2),
		batches:   make(chan []event.DeviceEvent, 4),
	}, nil
}

// Accept stamps a raw payload with its ingress metadata and queues it for
// batching. Transport properties (message headers) travel with the event
// uninterpreted. Blocks when the pipeline is backed up, which applies
// natural backpressure to the transport subscription.
func (b *Batcher) Accept(ctx context.Context, payload []byte, properties map[string]any) error {
	ev := event.DeviceEvent{
		Body:             payload,
		SequenceNumber:   b.seq.Add(1),
		EnqueuedAt:       timestamp.Now(),
		Partition:        b.partition,
		SystemProperties: properties,
	}
	select {
	case b.in <- ev:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Batcher", "Accept", "queue event")
	}
}

// HeaderProperties converts transport message headers into the opaque
// system-property bag carried on device events. Single-valued headers
// flatten to their value; multi-valued headers keep the slice.
func HeaderProperties(headers map[string][]string) map[string]any {
	if len(headers) == 0 {
		return nil
	}
	props := make(map[string]any, len(headers))
	for k, v := range headers {
		if len(v) == 1 {
			props[k] = v[0]
			continue
		}
		props[k] = v
	}
	return props
}

// Batches delivers assembled batches. The channel closes after Run returns.
func (b *Batcher) Batches() <-chan []event.DeviceEvent {
	return b.batches
}

// Run assembles batches until ctx is cancelled, then flushes the remainder
// and closes the batch channel. Run may be called once.
func (b *Batcher) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Batcher", "Run", "start batcher")
	}
	defer close(b.batches)

	ticker := time.NewTicker(b.window)
	defer ticker.Stop()

	pending := make([]event.DeviceEvent, 0, b.size)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = make([]event.DeviceEvent, 0, b.size)
		select {
		case b.batches <- batch:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			// Drain whatever the subscription already queued, then
			// emit the final partial batch.
			for {
				select {
				case ev := <-b.in:
					pending = append(pending, ev)
				default:
					// The context is already done, so the usual flush
					// would discard the batch. The channel buffer
					// absorbs the final send unless no consumer is
					// left at all.
					if len(pending) > 0 {
						select {
						case b.batches <- pending:
						default:
						}
					}
					return nil
				}
			}
		case ev := <-b.in:
			pending = append(pending, ev)
			if len(pending) >= b.size {
				flush()
				ticker.Reset(b.window)
			}
		case <-ticker.C:
			flush()
		}
	}
}
