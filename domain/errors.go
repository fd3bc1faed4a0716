package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeInvalid       ErrorCode = "INVALID"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeAlreadyDone   ErrorCode = "ALREADY_DONE"
	ErrCodeSelfReference ErrorCode = "SELF_REFERENCE"
	ErrCodeLimitReached  ErrorCode = "LIMIT_REACHED"
	ErrCodeMissingInput  ErrorCode = "MISSING_INPUT"
	ErrCodeExhausted     ErrorCode = "EXHAUSTED"
	ErrCodeInternal      ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClientError reports whether the caller can fix the failure (4xx) as opposed to an operational one (5xx).
func (e *Error) ClientError() bool {
	return e != nil && e.Code != ErrCodeInternal
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Internal classifies a store or infrastructure failure. Domain errors pass through untouched.
func Internal(message string, err error) error {
	if err == nil {
		return nil
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return err
	}
	return WrapError(ErrCodeInternal, message, err)
}

// Common domain errors.
var (
	ErrUserNotFound    = NewError(ErrCodeNotFound, "user not found")
	ErrQuestNotFound   = NewError(ErrCodeNotFound, "quest not found")
	ErrAttemptNotFound = NewError(ErrCodeNotFound, "user quest not found")
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrNotOwner        = NewError(ErrCodeForbidden, "not authorized")
	ErrInvalidPayload  = NewError(ErrCodeInvalid, "invalid payload")

	ErrNotInitial      = NewError(ErrCodeInvalidState, "quest cannot be started")
	ErrNotInProgress   = NewError(ErrCodeInvalidState, "quest not in progress")
	ErrNotSubmitted    = NewError(ErrCodeInvalidState, "quest not submitted")
	ErrAlreadyStarted  = NewError(ErrCodeInvalidState, "cannot change a quest that is already started")
	ErrMissingProof    = NewError(ErrCodeMissingInput, "no file uploaded")
	ErrAlreadyChanged  = NewError(ErrCodeAlreadyDone, "you already changed a quest today")
	ErrAlreadyVoted    = NewError(ErrCodeAlreadyDone, "already validated")
	ErrSelfValidation  = NewError(ErrCodeSelfReference, "cannot validate your own quest")
	ErrDailyLimit      = NewError(ErrCodeLimitReached, "daily validation limit reached")
	ErrNoAlternative   = NewError(ErrCodeExhausted, "no alternative quest available")
	ErrConcurrentWrite = NewError(ErrCodeInvalidState, "quest was modified concurrently")

	// ErrDuplicateSlot is returned by stores when a concurrent allocation already filled the slot.
	ErrDuplicateSlot = NewError(ErrCodeAlreadyDone, "allocation slot already taken")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
