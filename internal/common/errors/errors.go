// Package errors provides the typed failure taxonomy shared by the resolver
// pipeline and its BPMN workers.
package errors

import (
	"context"
	stderrors "errors"
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
	// Recovered locally, never surfaced as a failure.
	ErrCodeClassificationMiss ErrorCode = "CLASSIFICATION_MISS"
	ErrCodeAmbiguousMatch     ErrorCode = "AMBIGUOUS_MATCH"

	// Resolved by asking the user one more question.
	ErrCodeUnresolvableQuery ErrorCode = "UNRESOLVABLE_QUERY"

	// Structural failures reported to the user as an apology.
	ErrCodeQueryFailed       ErrorCode = "QUERY_FAILED"
	ErrCodeOracleTimeout     ErrorCode = "ORACLE_TIMEOUT"
	ErrCodeOracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"
	ErrCodeReportFailed      ErrorCode = "REPORT_FAILED"

	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeSessionBusy        ErrorCode = "SESSION_BUSY"
	ErrCodeSchemaValidation   ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
)

// QueryCause classifies why a query failed.
type QueryCause string

const (
	CauseTimeout       QueryCause = "timeout"
	CauseConnection    QueryCause = "connection"
	CauseMalformedPlan QueryCause = "malformed-plan"
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Cause returns the query failure cause, empty for other codes.
func (e *StandardError) Cause() QueryCause {
	if e.Metadata == nil {
		return ""
	}
	c, _ := e.Metadata["cause"].(QueryCause)
	return c
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewQueryFailedError wraps a storage failure with its classified cause.
// Query failures are never retried by the executor.
func NewQueryFailedError(cause QueryCause, err error) *StandardError {
	details := string(cause)
	if err != nil {
		details = fmt.Sprintf("cause: %s, error: %s", cause, err.Error())
	}
	e := newError(ErrCodeQueryFailed, "Query execution failed", details, false, err)
	e.Metadata = map[string]interface{}{"cause": cause}
	return e
}

// NewUnresolvableQueryError signals that no safe filter could be derived.
func NewUnresolvableQueryError(details string) *StandardError {
	return newError(ErrCodeUnresolvableQuery, "No safe filters could be derived", details, false, nil)
}

// NewOracleTimeoutError marks an oracle call that exceeded its deadline.
func NewOracleTimeoutError(err error) *StandardError {
	details := "oracle call exceeded timeout"
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeOracleTimeout, "Oracle timeout", details, true, err)
}

// NewOracleUnavailableError marks a failed or rejected oracle call.
func NewOracleUnavailableError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeOracleUnavailable, "Oracle unavailable", details, true, err)
}

// NewReportFailedError marks a report that could not be appended to any sink.
func NewReportFailedError(err error) *StandardError {
	return newError(ErrCodeReportFailed, "Fraud report could not be recorded", err.Error(), true, err)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false, nil)
}

func NewSessionBusyError(sessionID string) *StandardError {
	return newError(ErrCodeSessionBusy, "Session already has a turn in flight", fmt.Sprintf("sessionId: %s", sessionID), true, nil)
}

func NewSchemaValidationError(details string) *StandardError {
	return newError(ErrCodeSchemaValidation, "Input failed schema validation", details, false, nil)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed, "Notification delivery failed", fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true, err)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeReportFailed, ErrCodeNotificationFailed, ErrCodeOracleUnavailable, ErrCodeExternalService:
		return 3
	case ErrCodeOracleTimeout, ErrCodeSessionBusy, ErrCodeTimeout:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if cause := stdErr.Cause(); cause != "" {
		vars["cause"] = string(cause)
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsTimeout reports whether err stems from an exceeded deadline.
func IsTimeout(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded)
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ORACLE") || strings.Contains(codeStr, "CLASSIFICATION"):
		return "AI"
	case strings.Contains(codeStr, "REPORT") || strings.Contains(codeStr, "NOTIFICATION"):
		return "REPORTING"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	default:
		return "OTHER"
	}
}
