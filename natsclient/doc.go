// Package natsclient manages the NATS connection shared by the pipeline: the
// core subscription that delivers device events, the JetStream stream the
// sink flushes measurements to, and the key-value bucket the template store
// reads from.
//
// The client tracks connection status and counts consecutive failures; after
// the configured threshold it opens a circuit and refuses further attempts
// until the backoff window passes. Connection state changes feed the service
// metrics when a recorder is attached.
package natsclient
