package domain

import (
	"errors"
	"fmt"
)

// DomainError is a store error carrying a stable code.
//
// Two DomainErrors compare equal under errors.Is when their codes match,
// so callers can test against the exported sentinels regardless of the
// details or cause attached along the way.
type DomainError struct {
	Code    string // Error code (e.g., "FK-KEY-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidRequest indicates a malformed or unsupported protocol request.
	ErrInvalidRequest = NewDomainError("FK-ARG-4000", "invalid request")

	// ErrInvalidKey indicates the key is empty, too long, or not a valid file name.
	ErrInvalidKey = NewDomainError("FK-ARG-4001", "invalid key")

	// ErrInvalidPayload indicates the payload is not a well-formed JSON document
	// or exceeds the size limit.
	ErrInvalidPayload = NewDomainError("FK-ARG-4002", "invalid payload")
)

// ============================================================================
// Key Errors (KEY)
// ============================================================================

var (
	// ErrKeyNotFound indicates the key is absent from the index or has expired.
	ErrKeyNotFound = NewDomainError("FK-KEY-4040", "key not found or expired")

	// ErrDuplicateKey indicates a live entry already exists for the key.
	ErrDuplicateKey = NewDomainError("FK-KEY-4090", "key already exists")
)

// ============================================================================
// Filesystem Errors (FS)
// ============================================================================

var (
	// ErrRecordNotFound indicates the backing file does not exist.
	ErrRecordNotFound = NewDomainError("FK-FS-4040", "record file not found")

	// ErrLockContention indicates another operation holds the record lock.
	ErrLockContention = NewDomainError("FK-FS-4230", "record is locked by another operation")

	// ErrDirectoryCreateFailed indicates the target directory could not be created.
	ErrDirectoryCreateFailed = NewDomainError("FK-FS-5001", "unable to create directory")

	// ErrWriteFailed indicates the record file could not be written.
	ErrWriteFailed = NewDomainError("FK-FS-5002", "failed writing record")

	// ErrReadFailed indicates the record file could not be read.
	ErrReadFailed = NewDomainError("FK-FS-5003", "failed reading record")

	// ErrDeleteFailed indicates the record file could not be removed.
	ErrDeleteFailed = NewDomainError("FK-FS-5004", "failed deleting record")

	// ErrQuotaExceeded indicates the directory reached its size quota.
	ErrQuotaExceeded = NewDomainError("FK-FS-5070", "directory quota exceeded")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("FK-SYS-5000", "internal error")

	// ErrStoreClosed indicates the store has been shut down.
	ErrStoreClosed = NewDomainError("FK-SYS-5030", "store closed")
)

var knownErrors = []*DomainError{
	ErrInvalidRequest,
	ErrInvalidKey,
	ErrInvalidPayload,
	ErrKeyNotFound,
	ErrDuplicateKey,
	ErrRecordNotFound,
	ErrLockContention,
	ErrDirectoryCreateFailed,
	ErrWriteFailed,
	ErrReadFailed,
	ErrDeleteFailed,
	ErrQuotaExceeded,
	ErrInternal,
	ErrStoreClosed,
}

// ErrorFromCode rebuilds a DomainError received over the wire. Unknown codes
// keep their code and message.
func ErrorFromCode(code, message string) *DomainError {
	for _, e := range knownErrors {
		if e.Code == code {
			if message == "" || message == e.Message {
				return e
			}
			return e.WithDetails(message)
		}
	}
	return NewDomainError(code, message)
}
