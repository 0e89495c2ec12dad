package normalize

import (
	"github.com/google/uuid"

	"github.com/NANATribe/iomt-fhir/event"
	"github.com/NANATribe/iomt-fhir/measurement"
	"github.com/NANATribe/iomt-fhir/template"
)

// expand turns one extraction result into individual measurement
// occurrences.
//
// Alignment rule: multi-valued definitions co-vary by positional index, and
// the expansion count is the longest token sequence among the template's
// values. A single-token definition broadcasts its value to every index; a
// definition shorter than the expansion contributes nothing at indexes past
// its length. No padding and no truncation of longer siblings. The required
// gate then applies per occurrence: an occurrence missing a required value
// is dropped on its own, leaving siblings intact.
func expand(typeName string, res *template.ExtractionResult, ev event.DeviceEvent) (kept []measurement.Measurement, droppedOccurrences int) {
	expansion := 0
	for _, v := range res.Values {
		if len(v.Tokens) > expansion {
			expansion = len(v.Tokens)
		}
	}
	if expansion == 0 {
		return nil, 0
	}

	groupID := uuid.NewString()
	ingress := measurement.Ingress{
		SequenceNumber:   ev.SequenceNumber,
		Partition:        ev.Partition,
		EnqueuedAt:       ev.EnqueuedAt,
		SystemProperties: ev.SystemProperties,
	}

	for idx := 0; idx < expansion; idx++ {
		props := make(map[string]any, len(res.Values))
		missingRequired := false
		for _, v := range res.Values {
			switch n := len(v.Tokens); {
			case n == 0:
				if v.Definition.Required {
					missingRequired = true
				}
			case n == 1:
				props[v.Definition.Name] = v.Tokens[0]
			case idx < n:
				props[v.Definition.Name] = v.Tokens[idx]
			default:
				if v.Definition.Required {
					missingRequired = true
				}
			}
		}
		if missingRequired {
			droppedOccurrences++
			continue
		}

		kept = append(kept, measurement.Measurement{
			Type:            typeName,
			OccurredAt:      res.Timestamp,
			DeviceID:        res.DeviceID,
			PatientID:       res.PatientID,
			EncounterID:     res.EncounterID,
			CorrelationID:   res.CorrelationID,
			GroupID:         groupID,
			OccurrenceIndex: idx,
			Properties:      props,
			Ingress:         ingress,
		})
	}
	return kept, droppedOccurrences
}
