// Package worker provides a generic, bounded worker pool for concurrent task
// processing.
//
// The normalization service uses a pool to fan a batch of device events out
// across a configurable degree of parallelism. Events within a batch have no
// data dependency on each other, so they can be normalized concurrently while
// the batch as a whole stays a single logical pass.
//
// Design points:
//
//   - Generic work type T, no type assertions in processors
//   - Bounded queue with non-blocking Submit; a full queue returns
//     ErrQueueFull as a backpressure signal rather than blocking the caller
//   - Context-aware workers: cancellation stops new work, in-flight work
//     completes
//   - Always-on atomic statistics plus optional Prometheus metrics via
//     WithMetricsRegistry
//
// Worker count is fixed at construction. Per-work-item timeouts, priorities,
// and dynamic scaling are intentionally out of scope; implement timeouts in
// the processor function if needed.
//
// Usage:
//
//	pool := worker.NewPool[eventWork](8, 256, processEvent,
//	    worker.WithMetricsRegistry[eventWork](registry, "normalization_events"))
//	pool.Start(ctx)
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(work); errors.Is(err, worker.ErrQueueFull) {
//	    // backpressure: caller decides whether to wait or fail the batch
//	}
package worker
