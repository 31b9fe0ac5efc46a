package shared

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures surfaced to callers of the monetization core
type ErrorCode string

const (
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeAlreadyUnlocked     ErrorCode = "ALREADY_UNLOCKED"
	CodeAlreadySubscribed   ErrorCode = "ALREADY_SUBSCRIBED"
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	CodeContentNotAvailable ErrorCode = "CONTENT_NOT_AVAILABLE"
	CodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	CodeFraudBlocked        ErrorCode = "FRAUD_BLOCKED"
	CodeRateLimitExceeded   ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeOperationInProgress ErrorCode = "OPERATION_IN_PROGRESS"
	CodeTransactionAborted  ErrorCode = "TRANSACTION_ABORTED"
	CodeInternal            ErrorCode = "INTERNAL"
)

// Error is the tagged failure returned by the monetization core.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RiskScore int       `json:"risk_score,omitempty"`
	Action    string    `json:"action,omitempty"`
	Err       error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is implements the errors.Is interface, matching on code only
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the caller may retry with the same idempotency key
func (e *Error) Retryable() bool {
	return e.Code == CodeTransactionAborted
}

// NewError builds a tagged error
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a tagged error around a cause
func WrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Sentinels usable as errors.Is targets
var (
	ErrInvalidInput        = &Error{Code: CodeInvalidInput}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrAlreadyUnlocked     = &Error{Code: CodeAlreadyUnlocked}
	ErrAlreadySubscribed   = &Error{Code: CodeAlreadySubscribed}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance}
	ErrContentNotAvailable = &Error{Code: CodeContentNotAvailable}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
	ErrFraudBlocked        = &Error{Code: CodeFraudBlocked}
	ErrRateLimitExceeded   = &Error{Code: CodeRateLimitExceeded}
	ErrOperationInProgress = &Error{Code: CodeOperationInProgress}
	ErrTransactionAborted  = &Error{Code: CodeTransactionAborted}
)

// CodeOf extracts the code of a tagged error anywhere in the chain.
// Untagged errors report CodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError returns the tagged error in the chain, if any
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
