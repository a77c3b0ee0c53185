package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the scrape/serve pipeline.
var (
	ErrNotFound = errors.New("not found")

	// ErrNavigationFailed means the viewer would not advance after bounded
	// retries. Fatal to a walk.
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrDownloadFailed and ErrMergeFailed are reconciliation-local: the
	// caller degrades to a fallback artifact and continues.
	ErrDownloadFailed = errors.New("media download failed")
	ErrMergeFailed    = errors.New("media merge failed")

	// ErrLedgerIO wraps dedup ledger write failures, whichever backend.
	ErrLedgerIO = errors.New("ledger io failure")
)

// Error is a wrapped error carrying an optional machine-readable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new error with a message
func New(message string) error {
	return &Error{
		Message: message,
	}
}

// Wrap wraps an error with additional message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapWithCode wraps an error with a code and message
func WrapWithCode(err error, code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCode returns the error code if it exists
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
