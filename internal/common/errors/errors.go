// Package errors provides standardized error handling for the document
// generation pipeline.
package errors

import (
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
	ErrCodeTemplateNotFound  ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeMalformedTemplate ErrorCode = "MALFORMED_TEMPLATE"

	ErrCodeValidationIncomplete ErrorCode = "VALIDATION_INCOMPLETE"
	ErrCodeBindRetryExhausted   ErrorCode = "BIND_RETRY_EXHAUSTED"

	ErrCodeConversionStrategyFailed      ErrorCode = "CONVERSION_STRATEGY_FAILED"
	ErrCodeAllConversionStrategiesFailed ErrorCode = "ALL_CONVERSION_STRATEGIES_FAILED"

	ErrCodeStatsRecordFailed   ErrorCode = "STATS_RECORD_FAILED"
	ErrCodeHistoryInsertFailed ErrorCode = "HISTORY_INSERT_FAILED"
	ErrCodeAlertSendFailed     ErrorCode = "ALERT_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewTemplateNotFoundError creates a non-retryable template lookup error.
func NewTemplateNotFoundError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found in store",
		Details:   fmt.Sprintf("templateId: %s", templateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedTemplateError creates a non-retryable template parse error.
func NewMalformedTemplateError(templateID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedTemplate,
		Message:   "Template is not a readable document archive",
		Details:   fmt.Sprintf("templateId: %s, error: %s", templateID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationIncompleteError creates a non-retryable validation error
// carrying the missing tags so callers can self-correct.
func NewValidationIncompleteError(missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationIncomplete,
		Message:   "Required placeholders unfilled by the field record",
		Details:   fmt.Sprintf("missing: %s", strings.Join(missing, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"missing": missing},
		Timestamp: time.Now().UTC(),
	}
}

// NewBindRetryExhaustedError creates a non-retryable binder error with the
// underlying substitution detail attached.
func NewBindRetryExhaustedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBindRetryExhausted,
		Message:   "Data binder retry also failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConversionStrategyFailedError creates a retryable per-strategy error.
// It is recorded by the orchestrator and never surfaced on its own.
func NewConversionStrategyFailedError(strategy string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConversionStrategyFailed,
		Message:   "Conversion strategy failed",
		Details:   fmt.Sprintf("strategy: %s, error: %s", strategy, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAllConversionStrategiesFailedError indicates the orchestrator ran out of
// strategies. With pass-through in the chain this is an invariant violation.
func NewAllConversionStrategiesFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllConversionStrategiesFailed,
		Message:   "Every conversion strategy in the chain failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatsRecordFailedError creates a retryable stats-store error.
func NewStatsRecordFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatsRecordFailed,
		Message:   "Failed to record generation stats",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryInsertFailedError creates a retryable history-store error.
func NewHistoryInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryInsertFailed,
		Message:   "Failed to insert render history record",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlertSendFailedError creates a retryable alert delivery error.
func NewAlertSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlertSendFailed,
		Message:   "Failure alert delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeConversionStrategyFailed,
		ErrCodeStatsRecordFailed,
		ErrCodeHistoryInsertFailed,
		ErrCodeAlertSendFailed:
		return 3

	default:
		return 0 // Template/validation/binder errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "BIND"):
		return "RENDER"
	case strings.Contains(codeStr, "CONVERSION"):
		return "CONVERSION"
	case strings.Contains(codeStr, "STATS") || strings.Contains(codeStr, "HISTORY"):
		return "STORAGE"
	case strings.Contains(codeStr, "ALERT"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
