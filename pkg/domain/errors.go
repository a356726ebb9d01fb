package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeFollowUpLimit  = "FOLLOWUP_LIMIT_EXCEEDED"
	ErrCodeAlreadyReplied = "ALREADY_REPLIED"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeSendFailure    = "SEND_FAILURE"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// Error constructors

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewFollowUpLimitError creates an error for the per-lead follow-up cap
func NewFollowUpLimitError(limit int) error {
	return &DomainError{
		Code:    ErrCodeFollowUpLimit,
		Message: fmt.Sprintf("Maximum of %d follow-ups already scheduled for this lead", limit),
	}
}

// NewAlreadyRepliedError creates an error for scheduling against a replied thread
func NewAlreadyRepliedError() error {
	return &DomainError{
		Code:    ErrCodeAlreadyReplied,
		Message: "The lead already replied to this thread",
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewSendFailureError wraps a transient delivery error
func NewSendFailureError(err error) error {
	return &DomainError{
		Code:    ErrCodeSendFailure,
		Message: "Email delivery failed",
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// Helper functions to check error types

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsFollowUpLimit checks if the error is a follow-up limit error
func IsFollowUpLimit(err error) bool {
	return hasCode(err, ErrCodeFollowUpLimit)
}

// IsAlreadyReplied checks if the error is an already-replied error
func IsAlreadyReplied(err error) bool {
	return hasCode(err, ErrCodeAlreadyReplied)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsSendFailure checks if the error is a transient delivery failure
func IsSendFailure(err error) bool {
	return hasCode(err, ErrCodeSendFailure)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}
