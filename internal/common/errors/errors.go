// Package errors maps worker failures onto BPMN error codes and Zeebe retry decisions.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"lead-intake-workers/internal/channel"
	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/intake"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is the code thrown to the process as a BPMN error.
type ErrorCode string

const (
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"

	ErrCodeLeadNotFound     ErrorCode = "LEAD_NOT_FOUND"
	ErrCodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeJobNotFound      ErrorCode = "FOLLOWUP_JOB_NOT_FOUND"

	ErrCodeInvalidTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeTransportMissing  ErrorCode = "TRANSPORT_NOT_CONFIGURED"
	ErrCodeSchedulingFailed  ErrorCode = "FOLLOWUP_SCHEDULING_FAILED"

	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError is a classified worker failure.
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
// 2. BPMN Error Integration
// ==========================

// BPMNError is what the worker reports back to Zeebe.
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

// ToErrorVariables returns the process variables attached to a failed or thrown job.
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInputParsingError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
}

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

func NewPersistenceError(err error) *StandardError {
	return newError(ErrCodePersistenceFailed, "Storage operation failed", err.Error(), true)
}

func NewTimeoutError(operation string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Operation '%s' timed out", operation), err.Error(), true)
}

// FromDomainError classifies an error returned by the qualification and
// follow-up services. Missing records and illegal transitions are business
// errors; anything else is assumed to be a transient storage failure.
func FromDomainError(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	switch {
	case stderrors.Is(err, intake.ErrInvalidLead), stderrors.Is(err, intake.ErrInvalidUpdate),
		stderrors.Is(err, followup.ErrInvalidFilter):
		return NewValidationError(err.Error())
	case stderrors.Is(err, intake.ErrSchedulingIncomplete):
		return newError(ErrCodeSchedulingFailed, "Lead stored but follow-ups were not queued", err.Error(), false)
	case stderrors.Is(err, followup.ErrLeadNotFound):
		return newError(ErrCodeLeadNotFound, "Lead not found", err.Error(), false)
	case stderrors.Is(err, followup.ErrTemplateNotFound):
		return newError(ErrCodeTemplateNotFound, "Follow-up template not found", err.Error(), false)
	case stderrors.Is(err, followup.ErrJobNotFound):
		return newError(ErrCodeJobNotFound, "Follow-up job not found", err.Error(), false)
	case stderrors.Is(err, followup.ErrInvalidTransition):
		return newError(ErrCodeInvalidTransition, "Follow-up job status change not allowed", err.Error(), false)
	case stderrors.Is(err, channel.ErrTransportNotConfigured):
		return newError(ErrCodeTransportMissing, "No transport configured for channel", err.Error(), false)
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("job", err)
	case stderrors.Is(err, context.Canceled):
		return newError(ErrCodeInternal, "Job handling cancelled", err.Error(), true)
	default:
		return NewPersistenceError(err)
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the retries granted to a failed job for its code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailed:
		return 3
	case ErrCodeTimeout:
		return 2
	case ErrCodeInternal:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to the Zeebe-facing shape.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"timestamp": stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ExtractErrorCode returns the code used as the failure metric label.
func ExtractErrorCode(err error) string {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return "UNKNOWN_ERROR"
}
