package errors

import (
	"errors"
	"testing"
)

func TestNewError(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test error")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("expected message 'test error', got '%s'", err.Message)
	}
}

func TestWrapError(t *testing.T) {
	original := errors.New("original error")
	wrapped := Wrap(original, ErrCodeStreamFailed, "stream broke")

	if wrapped.Code != ErrCodeStreamFailed {
		t.Errorf("expected code %s, got %s", ErrCodeStreamFailed, wrapped.Code)
	}
	if wrapped.Message != "stream broke" {
		t.Errorf("expected message 'stream broke', got '%s'", wrapped.Message)
	}
	if !errors.Is(wrapped, original) {
		t.Error("wrapped error should contain original error")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ErrCodeUnknown, "whatever") != nil {
		t.Error("wrapping nil should return nil")
	}
	if Wrapf(nil, ErrCodeUnknown, "whatever %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestErrorWithContext(t *testing.T) {
	err := New(ErrCodeProcessClosed, "process closed")
	err = err.WithContext("process", "community-agent").
		WithContext("pending", true)

	if err.Context["process"] != "community-agent" {
		t.Error("context not set correctly")
	}
	if err.Context["pending"] != true {
		t.Error("context not set correctly")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"app error", New(ErrCodeProcessNotAlive, "test"), ErrCodeProcessNotAlive},
		{"standard error", errors.New("standard"), ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := GetCode(tt.err); code != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, code)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeTimeout, "operation timed out")

	if !Is(err, ErrCodeTimeout) {
		t.Error("Is should return true for matching error code")
	}
	if Is(err, ErrCodeInvalidInput) {
		t.Error("Is should return false for non-matching error code")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(ErrCodeStreamFailed, "stream failed")) {
		t.Error("stream failures should be retryable")
	}
	if !IsRetryable(errors.New("connection refused")) {
		t.Error("network errors should be retryable")
	}
	if IsRetryable(New(ErrCodeInvalidConfig, "bad config")) {
		t.Error("config errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(New(ErrCodeRestartExhausted, "gave up")) {
		t.Error("restart exhaustion should be fatal")
	}
	if IsFatal(New(ErrCodeEmptyResult, "no result")) {
		t.Error("empty result should not be fatal")
	}
}
