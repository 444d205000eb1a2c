package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so callers can react without matching on codes
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION_ERROR"
	KindStateConflict ErrorKind = "STATE_CONFLICT"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindMismatch      ErrorKind = "MISMATCH"
	KindFatal         ErrorKind = "FATAL"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause of a fatal error
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches two domain errors by code, so errors.Is works against the sentinels
// even when the message was customised.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError creates a new domain error. The kind is derived from the code
// for the well-known codes and defaults to validation otherwise.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
	}
}

// NewValidationError creates a validation error with the given code
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewStateConflict creates an error for an operation the current state does not allow
func NewStateConflict(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindStateConflict}
}

// NewNotFound creates a not-found error naming the missing resource
func NewNotFound(resource string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: resource + " not found", Kind: KindNotFound}
}

// NewMismatch creates an error for references that do not belong together
func NewMismatch(message string) *DomainError {
	return &DomainError{Code: CodeMismatch, Message: message, Kind: KindMismatch}
}

// NewFatal wraps an infrastructure failure. The cause stays reachable via errors.Unwrap.
func NewFatal(message string, cause error) *DomainError {
	return &DomainError{Code: CodeFatal, Message: message, Kind: KindFatal, Cause: cause}
}

// Error codes
const (
	CodeNotFound            = "NOT_FOUND"
	CodeMismatch            = "MISMATCH"
	CodeFatal               = "FATAL"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidState        = "INVALID_STATE"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidReason       = "INVALID_REASON"
	CodeMissingProposed     = "MISSING_PROPOSED_QUANTITY"
	CodeInvalidKind         = "INVALID_KIND"
	CodeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	CodeRecountPending      = "RECOUNT_PENDING"
	CodeNegativeResult      = "NEGATIVE_RESULT"
	CodeOptimisticLock      = "OPTIMISTIC_LOCK_FAILED"
)

func kindForCode(code string) ErrorKind {
	switch code {
	case CodeNotFound:
		return KindNotFound
	case CodeMismatch:
		return KindMismatch
	case CodeFatal:
		return KindFatal
	case CodeInvalidState, CodeConcurrencyConflict, CodeOptimisticLock, CodeRecountPending, CodeNegativeResult:
		return KindStateConflict
	default:
		return KindValidation
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)

// KindOf returns the kind of a domain error anywhere in the chain, or an empty kind
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsStateConflict reports whether err is a state conflict, including lost optimistic locks
func IsStateConflict(err error) bool { return KindOf(err) == KindStateConflict }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsMismatch reports whether err is a mismatch error
func IsMismatch(err error) bool { return KindOf(err) == KindMismatch }

// IsFatal reports whether err is a fatal error
func IsFatal(err error) bool { return KindOf(err) == KindFatal }

// AsFatal keeps domain errors intact and wraps anything else as fatal
func AsFatal(message string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return NewFatal(message, err)
}
