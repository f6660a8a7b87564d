package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// General errors
	ErrCodeUnknown       ErrorCode = "UNKNOWN"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeTimeout       ErrorCode = "TIMEOUT"

	// Process errors
	ErrCodeProcessNotAlive  ErrorCode = "PROCESS_NOT_ALIVE"
	ErrCodeProcessClosed    ErrorCode = "PROCESS_CLOSED"
	ErrCodeEmptyResult      ErrorCode = "EMPTY_RESULT"
	ErrCodeStreamFailed     ErrorCode = "STREAM_FAILED"
	ErrCodeRecycleFailed    ErrorCode = "RECYCLE_FAILED"
	ErrCodeRestartExhausted ErrorCode = "RESTART_EXHAUSTED"

	// SDK errors
	ErrCodeSDKError       ErrorCode = "SDK_ERROR"
	ErrCodeSDKStartFailed ErrorCode = "SDK_START_FAILED"
	ErrCodeSDKUnavailable ErrorCode = "SDK_UNAVAILABLE"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]any
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Context: make(map[string]any),
	}
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code from an error if it's an AppError
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeUnknown
}

// GetMessage returns the error message
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// Is checks if error is of specific type
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
