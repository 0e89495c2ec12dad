package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"storage unavailable", ErrStorageUnavailable, true},
		{"template store unavailable", ErrTemplateStoreUnavailable, true},
		{"sink unavailable", ErrSinkUnavailable, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"payload parse", ErrPayloadParse, false},
		{"template invalid", ErrTemplateInvalid, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network connection failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"payload parse", ErrPayloadParse, true},
		{"expression evaluation", ErrExpressionEvaluation, true},
		{"required field missing", ErrRequiredFieldMissing, true},
		{"required value missing", ErrRequiredValueMissing, true},
		{"connection lost", ErrConnectionLost, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(ErrTemplateInvalid) {
		t.Error("template validation errors must be fatal at load time")
	}
	if !IsFatal(ErrInvalidConfig) || !IsFatal(ErrMissingConfig) {
		t.Error("configuration errors must be fatal")
	}
	if IsFatal(ErrPayloadParse) {
		t.Error("per-event parse failures must not be fatal")
	}
	if IsFatal(nil) {
		t.Error("nil is never fatal")
	}
}

func TestWrap_Format(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "NormalizationService", "ProcessBatch", "parse payload")
	want := "NormalizationService.ProcessBatch: parse payload failed: boom"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error must unwrap to the original")
	}
	if Wrap(nil, "C", "M", "a") != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestWrapClassified_PreservesClassThroughChain(t *testing.T) {
	inner := WrapTransient(ErrSinkUnavailable, "Collector", "Flush", "publish")
	outer := Wrap(inner, "NormalizationService", "ProcessBatch", "flush measurements")

	if !IsTransient(outer) {
		t.Error("classification must survive additional wrapping")
	}
	if !errors.Is(outer, ErrSinkUnavailable) {
		t.Error("sentinel must survive additional wrapping")
	}

	var ce *ClassifiedError
	if !errors.As(outer, &ce) {
		t.Fatal("expected a ClassifiedError in the chain")
	}
	if ce.Component != "Collector" || ce.Operation != "Flush" {
		t.Errorf("unexpected component/operation: %s/%s", ce.Component, ce.Operation)
	}
}

func TestWrapInvalid_MessageContainsContext(t *testing.T) {
	err := WrapInvalid(ErrRequiredValueMissing, "ContentTemplate", "Extract", "value hr")
	if !strings.Contains(err.Error(), "ContentTemplate.Extract") {
		t.Errorf("expected component context in message, got %q", err.Error())
	}
	if !IsInvalid(err) {
		t.Error("expected invalid classification")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"transient sentinel", ErrTemplateStoreUnavailable, ErrorTransient},
		{"invalid sentinel", ErrPayloadParse, ErrorInvalid},
		{"fatal sentinel", ErrTemplateInvalid, ErrorFatal},
		{"unknown defaults transient", errors.New("mystery"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	if !cfg.ShouldRetry(ErrSinkUnavailable, 0) {
		t.Error("transient error under max retries should retry")
	}
	if cfg.ShouldRetry(ErrSinkUnavailable, cfg.MaxRetries) {
		t.Error("must not retry at max attempts")
	}
	if cfg.ShouldRetry(ErrPayloadParse, 0) {
		t.Error("invalid errors must not be retried")
	}
	if cfg.ShouldRetry(nil, 0) {
		t.Error("nil error must not retry")
	}
}

func TestRetryConfig_ToRetryConfig(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    4,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 1.5,
	}

	rc := cfg.ToRetryConfig()
	if rc.MaxAttempts != 5 {
		t.Errorf("expected 5 total attempts, got %d", rc.MaxAttempts)
	}
	if rc.InitialDelay != cfg.InitialDelay || rc.MaxDelay != cfg.MaxDelay {
		t.Error("delays must carry over")
	}
	if !rc.AddJitter {
		t.Error("jitter should be enabled by default")
	}
}
