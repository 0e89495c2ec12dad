// Package normalize is the heart of the pipeline: it turns raw device events
// into normalized measurements using the template collection.
//
// Each event moves through a fixed sequence: parse the payload, match
// templates, extract declared expressions, expand multi-valued results into
// individual occurrences, enforce the required-value policy, and emit the
// survivors to the sink. Failures are contained at the narrowest scope that
// makes sense: a parse failure loses one event, a missing timestamp loses
// one (event, template) pair, a missing required value loses one occurrence.
// A batch only fails as a whole when the sink cannot accept its flush.
//
// The template collection is an immutable snapshot held behind an atomic
// pointer; Reload swaps in a new collection without disturbing in-flight
// batches.
package normalize
