// Package errors defines the sentinel errors shared across the percolator
// and maps them onto HTTP status codes for the API layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoQueries     = errors.New("no queries registered")
	ErrQueryNotFound = errors.New("query not found")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrInvalidInput  = errors.New("invalid input")
	ErrMonitorClosed = errors.New("monitor closed")
	ErrTimeout       = errors.New("operation timed out")
	ErrInternal      = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrQueryNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoQueries), errors.Is(err, ErrMonitorClosed):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
