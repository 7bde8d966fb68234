/*
Package errs provides custom error types and application-level error code constants.

This file defines CustomError, which implements the error interface and carries a business
code, a client-facing message and the HTTP status used when it reaches a REST response.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"duochat/internal/pkg/logx"
)

// CustomError is the error type surfaced to clients.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status code corresponding to this error.
	Status int

	// cause is the underlying failure, kept for logs and errors.Is/As chains.
	cause error
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("error code %d (HTTP %d): %s: %v", e.Code, e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CustomError) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *CustomError) Retryable() bool {
	return e.Code == ErrStorageUnavailable
}

// NewError builds a *CustomError from a predefined code. Optional details are used as
// printf arguments when the template message has placeholders. Unknown codes fall back
// to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)
		templateErr = errorMap[ErrUnknown]
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn("Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code)
		}
	}

	return &customErr
}

// Wrap builds a *CustomError for code that keeps err as its cause.
func Wrap(code int, err error) *CustomError {
	customErr := NewError(code)
	customErr.cause = err
	return customErr
}

// HasCode reports whether err, or any error it wraps, is a CustomError with the given code.
func HasCode(err error, code int) bool {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code == code
	}
	return false
}

// From converts any error into a *CustomError; errors that are not already
// a CustomError become ErrUnknown with the original error as cause.
func From(err error) *CustomError {
	if err == nil {
		return nil
	}

	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr
	}

	logx.Error(err, "Handling unclassified error as ErrUnknown")
	return Wrap(ErrUnknown, err)
}
