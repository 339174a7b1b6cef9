package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message.
// It lets sentinel errors match wrapped copies created with WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of the error carrying err as its cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: err}
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeBodyTooLarge  = "BODY_TOO_LARGE"

	ErrCodeEmptyQuery        = "EMPTY_QUERY"
	ErrCodeIndexUnavailable  = "INDEX_UNAVAILABLE"
	ErrCodeRetrievalFailure  = "RETRIEVAL_FAILURE"
	ErrCodeGenerationFailure = "GENERATION_FAILURE"
)

// EmptyQueryMessage is shown to users who submit a blank question.
const EmptyQueryMessage = "لطفاً سوال خود را وارد کنید."

// Pipeline errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeEmptyQuery, EmptyQueryMessage)
	ErrIndexUnavailable  = NewDomainError(ErrCodeIndexUnavailable, "vector index unavailable")
	ErrRetrievalFailure  = NewDomainError(ErrCodeRetrievalFailure, "retrieval failed")
	ErrGenerationFailure = NewDomainError(ErrCodeGenerationFailure, "answer generation failed")
)

// Validation errors
var (
	ErrInvalidTopK          = NewDomainError(ErrCodeValidation, "top_k must be positive")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrIndexMisaligned      = NewDomainError(ErrCodeValidation, "index and mapping are misaligned")
)

// BodyTooLarge reports a request body over the configured limit of limit bytes.
func BodyTooLarge(limit int64) *DomainError {
	return NewDomainError(ErrCodeBodyTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
}

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Storage errors
var (
	ErrArtifactNotFound     = NewDomainError(ErrCodeNotFound, "index artifact not found")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
