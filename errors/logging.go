package errors

import (
	"errors"
	"slices"
	"strings"

	"github.com/stewardbot/steward/internal/logger"
	"go.uber.org/zap"
)

// LogError logs an error with its code and wrapped cause, if any.
func LogError(message string, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		logger.Error(message,
			zap.String("error_code", string(appErr.Code)),
			zap.String("error_message", appErr.Message),
			zap.Error(appErr.Err),
			zap.Any("context", appErr.Context))
		return
	}

	logger.Error(message,
		zap.String("error_code", string(GetCode(err))),
		zap.String("error_message", GetMessage(err)),
		zap.Error(err))
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	retryableCodes := []ErrorCode{
		ErrCodeTimeout,
		ErrCodeStreamFailed,
		ErrCodeSDKUnavailable,
	}

	if slices.Contains(retryableCodes, code) {
		return true
	}

	// Also check error message for network-related issues
	msg := strings.ToLower(err.Error())
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"broken pipe",
	}

	for _, keyword := range networkKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal (should stop operation)
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	fatalCodes := []ErrorCode{
		ErrCodeInvalidConfig,
		ErrCodeRestartExhausted,
	}

	return slices.Contains(fatalCodes, code)
}
