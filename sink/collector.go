// Package sink delivers normalized measurements downstream. The contract is
// collect then flush: the normalization service buffers measurements through
// Add and the pipeline issues one Flush per batch. Flush failure is a
// batch-level error; already-delivered batches are never retracted.
package sink

import (
	"context"

	"github.com/NANATribe/iomt-fhir/measurement"
)

// Collector buffers measurements and delivers them on Flush.
// Implementations must preserve Add order within a flush.
type Collector interface {
	// Add buffers one measurement for the next flush.
	Add(ctx context.Context, m measurement.Measurement) error

	// Flush delivers everything buffered since the previous flush. On
	// failure the buffer is retained so the caller can retry the batch.
	Flush(ctx context.Context) error
}
