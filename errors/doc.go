// Package errors provides standardized error handling patterns for the
// normalization connector.
//
// # Overview
//
// The package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing). Classification lets the pipeline
// make retry and drop decisions without string matching on error text.
//
// The taxonomy maps onto pipeline behavior as follows:
//
//   - ErrTemplateInvalid is Fatal at template load: nothing can be normalized
//     against a malformed template document, so processing is blocked until
//     the document is corrected.
//   - ErrPayloadParse, ErrExpressionEvaluation, ErrRequiredFieldMissing, and
//     ErrRequiredValueMissing are Invalid: they fail a single event,
//     (event, template) pair, or occurrence. The batch continues.
//   - ErrTemplateStoreUnavailable and ErrSinkUnavailable are Transient: they
//     fail the whole batch, which the caller retries.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() preserves the original error's classification.
//
// Classification is preserved through error chains and integrates with the
// standard library's errors.Is and errors.As:
//
//	wrapped := errors.WrapTransient(errors.ErrSinkUnavailable, "Collector", "Flush", "publish")
//	errors.IsTransient(wrapped) // true
//
// # Retry Configuration
//
// RetryConfig bridges classification into the pkg/retry framework:
//
//	cfg := errors.DefaultRetryConfig()
//	retry.Do(ctx, cfg.ToRetryConfig(), func() error { return flush() })
package errors
