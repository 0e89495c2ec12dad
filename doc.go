// Package iomtfhir is the root of the IoMT device-data normalization engine.
//
// The engine extracts structured measurements from semi-structured device
// telemetry using externally authored, data-driven templates. Device vendors
// emit heterogeneous JSON payloads; mapping rules are supplied at runtime as
// template documents, so new devices are onboarded without recompiling the
// pipeline.
//
// # Architecture
//
// Data flows through a small number of focused packages:
//
//	raw event bytes -> parsed document -> template match ->
//	per-template extraction -> one-to-many measurements -> sink + metrics
//
//   - expression: compiled JSONPath expressions and the evaluator contract
//   - template: content templates, the simple-template facade, and the
//     ordered template collection with its match modes
//   - templatestore: NATS KV backed storage for raw template documents
//   - event / measurement: the inbound and outbound data models
//   - normalize: the normalization service (match, extract, expand, validate)
//   - sink: measurement collectors with collect-then-flush semantics
//   - metric: Prometheus registry wrapper and connector metric definitions
//   - natsclient: managed NATS connection (pub/sub, JetStream, KV)
//
// Supporting packages under pkg/ provide timestamps, retries, and a bounded
// worker pool. Everything that processes a batch shares one immutable
// template collection snapshot; template reloads swap the snapshot atomically
// and never disturb an in-flight batch.
package iomtfhir
