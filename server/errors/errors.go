package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an application error carrying the HTTP status it maps to.
type AppError struct {
	Code    int    `json:"status_code"`
	Message string `json:"message"` // safe to show to the caller
	Err     error  `json:"-"`
	Context string `json:"-"`
}

// Error implements error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status.
func (e *AppError) StatusCode() int {
	return e.Code
}

// UserMessage returns the message for the caller.
func (e *AppError) UserMessage() string {
	return e.Message
}

// Detail returns the wrapped error text, or the message when nothing is wrapped.
func (e *AppError) Detail() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// WithContext attaches context for the logs.
func (e *AppError) WithContext(context string) *AppError {
	e.Context = context
	return e
}

// NewConflictError creates a 409 Conflict.
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: message,
		Err:     err,
	}
}

// NewTooManyRequestsError creates a 429 Too Many Requests.
func NewTooManyRequestsError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusTooManyRequests,
		Message: message,
		Err:     err,
	}
}

// NewTimeoutError creates a 504 Gateway Timeout.
func NewTimeoutError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusGatewayTimeout,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a 500 Internal Server Error.
// The caller sees a generic message; the details stay in Err.
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
		Err:     errors.Join(errors.New(message), err),
	}
}

// WrapError prefixes an AppError's message, or turns any other error into an internal error.
func WrapError(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
			Context: appErr.Context,
		}
	}

	return NewInternalError(message, err)
}
