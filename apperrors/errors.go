// Package apperrors defines the typed errors returned by the ordering core.
// Callers branch on the Code; the Message is for logs.
package apperrors

import "errors"

// Code is a machine-readable error kind
type Code string

const (
	CodeUnknown                Code = "UNKNOWN"
	CodeInvalidItem            Code = "INVALID_ITEM"
	CodeEmptySelection         Code = "EMPTY_SELECTION"
	CodeCutoffExceeded         Code = "CUTOFF_EXCEEDED"
	CodeNothingToCancel        Code = "NOTHING_TO_CANCEL"
	CodeCapacityReached        Code = "CAPACITY_REACHED"
	CodeTransientStoreConflict Code = "TRANSIENT_STORE_CONFLICT"
	CodeInvalidSortMode        Code = "INVALID_SORT_MODE"
	CodeInvalidDay             Code = "INVALID_DAY"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeNotFound               Code = "NOT_FOUND"
	CodeInvalidRequest         Code = "INVALID_REQUEST"
)

// Retryable reports whether a caller may repeat the same request unchanged
func (c Code) Retryable() bool {
	return c == CodeTransientStoreConflict
}

// Error is the domain error type
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so sentinel values below
// work with errors.Is even when a call site attached metadata.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code of the first *Error in err's chain
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

var (
	ErrInvalidItem            = New(CodeInvalidItem, "unknown menu item or invalid quantity")
	ErrEmptySelection         = New(CodeEmptySelection, "selection is empty")
	ErrCutoffExceeded         = New(CodeCutoffExceeded, "today's order can no longer be changed")
	ErrNothingToCancel        = New(CodeNothingToCancel, "no committed order for today")
	ErrCapacityReached        = New(CodeCapacityReached, "the canteen is fully booked for today")
	ErrTransientStoreConflict = New(CodeTransientStoreConflict, "concurrent update detected, please retry")
	ErrInvalidSortMode        = New(CodeInvalidSortMode, "sort must be priority or time")
	ErrInvalidDay             = New(CodeInvalidDay, "day must be YYYY-MM-DD")
	ErrInvalidTransition      = New(CodeInvalidTransition, "order state transition is not allowed")
	ErrNotFound               = New(CodeNotFound, "not found")
)
