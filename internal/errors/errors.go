package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types for the school console
var (
	// Access errors
	ErrUnresolved       = errors.New("identity unresolved")
	ErrResolutionFailed = errors.New("identity resolution failed")
	ErrForbidden        = errors.New("forbidden")

	// Input and storage errors
	ErrValidation = errors.New("validation failed")
	ErrWrite      = errors.New("write failed")
	ErrNotFound   = errors.New("not found")

	// Session errors
	ErrNotSignedIn        = errors.New("not signed in")
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrNoTenantBound      = errors.New("no tenant bound to session")
	ErrSessionInvalidated = errors.New("session changed before the operation completed")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError reports input rejected before any backing-store call.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := ErrValidation.Error()
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for the given fields.
func NewValidationError(reason string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Reason: reason}
}

// causeError pairs a category sentinel with the underlying cause so that both
// errors.Is(err, category) and errors.Is(err, cause) hold.
type causeError struct {
	category error
	cause    error
}

func (e *causeError) Error() string {
	if e.cause == nil {
		return e.category.Error()
	}
	return e.category.Error() + ": " + e.cause.Error()
}

func (e *causeError) Is(target error) bool {
	return target == e.category
}

func (e *causeError) Unwrap() error {
	return e.cause
}

// ResolutionFailed marks a transient lookup failure during identity resolution.
func ResolutionFailed(cause error) error {
	return &causeError{category: ErrResolutionFailed, cause: cause}
}

// WriteFailed marks a backing-store failure on a mutation.
func WriteFailed(cause error) error {
	return &causeError{category: ErrWrite, cause: cause}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
