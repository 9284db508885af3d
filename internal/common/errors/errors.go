// Package errors provides standardized error handling for the delivery pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeEnqueueFailed    ErrorCode = "ENQUEUE_FAILED"
	ErrCodeQueueFull        ErrorCode = "QUEUE_FULL"
	ErrCodeInvalidPayload   ErrorCode = "INVALID_PAYLOAD"

	ErrCodeDeliveryTransient ErrorCode = "DELIVERY_TRANSIENT"
	ErrCodeDeliveryPermanent ErrorCode = "DELIVERY_PERMANENT"
	ErrCodeTemplateNotFound  ErrorCode = "TEMPLATE_NOT_FOUND"

	ErrCodeAdminAlertFailed  ErrorCode = "ADMIN_ALERT_FAILED"
	ErrCodeDeliveryLogFailed ErrorCode = "DELIVERY_LOG_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable enqueue-time validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEnqueueFailedError creates a retryable error for an unavailable queue.
func NewEnqueueFailedError(queue string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEnqueueFailed,
		Message:   fmt.Sprintf("Failed to enqueue job on %s", queue),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueueFullError creates a retryable admission error.
func NewQueueFullError(queue string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueFull,
		Message:   fmt.Sprintf("Queue %s is at capacity", queue),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPayloadError creates a non-retryable error for malformed job data.
func NewInvalidPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPayload,
		Message:   "Job payload is malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransientDeliveryError wraps a transport failure that a retry may fix.
func NewTransientDeliveryError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryTransient,
		Message:   fmt.Sprintf("%s delivery failed", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewPermanentDeliveryError wraps a transport rejection that retries cannot fix.
func NewPermanentDeliveryError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryPermanent,
		Message:   fmt.Sprintf("%s delivery rejected", channel),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found",
		Details:   fmt.Sprintf("template %q does not exist", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAdminAlertFailedError records a failed administrator notification.
func NewAdminAlertFailedError(jobID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAdminAlertFailed,
		Message:   "Administrator notification failed",
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"jobId": jobID},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDeliveryLogFailedError records a failed delivery log write.
func NewDeliveryLogFailedError(backend string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryLogFailed,
		Message:   fmt.Sprintf("Failed to write delivery log to %s", backend),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard returns the StandardError in err's chain, or wraps err as an
// internal error. Unclassified errors are retryable.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// IsRetryable reports whether err should be retried. Unclassified errors are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return AsStandard(err).Retryable
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PAYLOAD"):
		return "VALIDATION"
	case strings.Contains(codeStr, "QUEUE") || strings.Contains(codeStr, "ENQUEUE"):
		return "QUEUE"
	case strings.Contains(codeStr, "DELIVERY_LOG"):
		return "STORAGE"
	case strings.Contains(codeStr, "DELIVERY") || strings.Contains(codeStr, "TEMPLATE"):
		return "DELIVERY"
	case strings.Contains(codeStr, "ALERT"):
		return "ALERT"
	default:
		return "OTHER"
	}
}
