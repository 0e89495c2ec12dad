// Package template models the data-driven mapping rules that turn device
// telemetry documents into normalized measurements.
//
// A ContentTemplate declares which events it applies to (type match
// expression), how to identify the reading (device, patient, encounter,
// correlation ids), which timestamp to use, and an ordered set of named value
// definitions to extract. Templates arrive as JSON documents in a collection
// wrapper; Parse validates the document against an embedded schema and
// dispatches on templateType. The simpler JsonPathContent authoring format is
// adapted onto the same canonical shape so the rest of the pipeline evaluates
// one model.
package template
