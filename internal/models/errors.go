package models

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated means no valid principal is attached to the request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the principal has the wrong role for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrProtectedAccount is returned for edits or deletes of the admin account.
	ErrProtectedAccount = errors.New("admin account is protected")
	// ErrPersistence wraps storage failures. The surrounding transaction has been rolled back.
	ErrPersistence = errors.New("persistence failure")
	// ErrTooManyAttempts is returned while login is throttled for an email.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)

// ValidationError carries per-field messages keyed by form field name.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsDomainError reports whether err is already one of the package's error kinds.
func IsDomainError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, target := range []error{
		ErrNotFound, ErrInvalidCredentials, ErrUnauthenticated,
		ErrForbidden, ErrProtectedAccount, ErrPersistence, ErrTooManyAttempts,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
