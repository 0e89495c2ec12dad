// Package event defines the inbound device event model consumed by the
// normalization service.
package event

import (
	"fmt"

	"github.com/NANATribe/iomt-fhir/pkg/timestamp"
)

// DeviceEvent is one raw telemetry record from the inbound transport. The
// payload is opaque bytes until the normalization service parses it; the
// transport metadata (sequence number, enqueue time, partition) travels with
// the event for ordering, latency measurement, and metric dimensions.
type DeviceEvent struct {
	// Body is the raw payload as received from the transport.
	Body []byte `json:"body"`

	// SequenceNumber is the transport-assigned, monotonically increasing
	// position of the event within its partition.
	SequenceNumber int64 `json:"sequence_number"`

	// EnqueuedAt is when the transport accepted the event, in Unix
	// milliseconds. End-to-end latency is measured from this instant.
	EnqueuedAt int64 `json:"enqueued_at"`

	// Partition identifies the transport partition or shard the event was
	// read from.
	Partition string `json:"partition"`

	// SystemProperties is an opaque bag of transport properties,
	// propagated but never interpreted.
	SystemProperties map[string]any `json:"system_properties,omitempty"`
}

// Size returns the payload size in bytes.
func (e DeviceEvent) Size() int {
	return len(e.Body)
}

// Validate checks the event carries the fields the pipeline depends on.
func (e DeviceEvent) Validate() error {
	if len(e.Body) == 0 {
		return fmt.Errorf("device event body cannot be empty")
	}
	if err := timestamp.Validate(e.EnqueuedAt); err != nil {
		return fmt.Errorf("device event enqueue time: %w", err)
	}
	return nil
}
