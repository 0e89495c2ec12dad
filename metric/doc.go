// Package metric provides Prometheus metrics infrastructure for the
// normalization connector.
//
// The package has three parts:
//
//   - MetricsRegistry: a wrapper around a dedicated Prometheus registry that
//     tracks per-service metric registration, rejects duplicates with
//     classified errors, and supports unregistration on component shutdown.
//   - Core platform metrics: service status, message throughput, processing
//     durations, and NATS connection health, shared by every component.
//   - Connector dimensions: the fixed label vocabulary used by pipeline
//     metrics — category (traffic/latency/errors), operation
//     (normalization/fhir_conversion), and partition.
//
// Pipeline stages (normalize, sink) define their own metric structs in their
// own packages and register them here, keeping domain metric names next to
// the code that emits them. Metric emission is always explicit: a registry is
// threaded through constructors, never read from a global.
package metric
