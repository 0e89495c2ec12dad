// Package health tracks the readiness of the connector's moving parts: the
// NATS connection, the template store, the loaded template collection, and
// the measurement sink.
//
// A Monitor holds one Status per component and aggregates them into a single
// system status using hierarchical rules: any unhealthy component makes the
// system unhealthy, any degraded component makes it degraded, otherwise the
// system is healthy. Monitor.Handler serves the aggregate as JSON for
// liveness probes.
//
// Status messages are sanitized before storage so connection errors do not
// leak broker URLs or credentials into probe responses.
package health
