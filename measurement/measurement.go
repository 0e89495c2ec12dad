// Package measurement defines the normalized output record produced by the
// normalization service.
package measurement

import (
	"fmt"

	"github.com/NANATribe/iomt-fhir/pkg/timestamp"
)

// Ingress carries the transport metadata of the device event a measurement
// was extracted from. It is propagated, never interpreted.
type Ingress struct {
	SequenceNumber int64  `json:"sequence_number"`
	Partition      string `json:"partition"`
	EnqueuedAt     int64  `json:"enqueued_at"`

	// SystemProperties is the opaque property bag the transport attached
	// to the event (message headers and the like).
	SystemProperties map[string]any `json:"system_properties,omitempty"`
}

// Measurement is one normalized reading: a single occurrence extracted from
// one (event, template) match. Immutable after creation; ownership passes to
// the sink on forward.
type Measurement struct {
	// Type is the template type name the measurement was extracted with.
	Type string `json:"type"`

	// OccurredAt is the reading's own timestamp in Unix milliseconds,
	// extracted by the template's timestamp expression.
	OccurredAt int64 `json:"occurred_at"`

	// Identity fields. Each may be empty when the template declares no
	// expression for it or the expression matched nothing.
	DeviceID      string `json:"device_id,omitempty"`
	PatientID     string `json:"patient_id,omitempty"`
	EncounterID   string `json:"encounter_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`

	// GroupID ties together all measurements expanded from the same
	// (event, template) extraction.
	GroupID string `json:"group_id,omitempty"`

	// OccurrenceIndex is the position of this measurement within its
	// group's positional expansion.
	OccurrenceIndex int `json:"occurrence_index"`

	// Properties maps value-definition names to extracted tokens. A name
	// is absent when its optional expression matched nothing at this
	// occurrence index.
	Properties map[string]any `json:"properties"`

	// Ingress is the transport metadata of the originating device event.
	Ingress Ingress `json:"ingress"`
}

// Validate checks the invariants every emitted measurement must hold: a
// type, a timestamp, and at least one extracted property.
func (m Measurement) Validate() error {
	if m.Type == "" {
		return fmt.Errorf("measurement type cannot be empty")
	}
	if timestamp.IsZero(m.OccurredAt) {
		return fmt.Errorf("measurement timestamp cannot be zero")
	}
	if err := timestamp.Validate(m.OccurredAt); err != nil {
		return fmt.Errorf("measurement timestamp: %w", err)
	}
	if len(m.Properties) == 0 {
		return fmt.Errorf("measurement must carry at least one property")
	}
	if m.OccurrenceIndex < 0 {
		return fmt.Errorf("occurrence index cannot be negative")
	}
	return nil
}
