// Package errors defines the sentinel errors shared by the index, the
// searcher and the HTTP layer, and maps them to HTTP statuses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoSnapshot    = errors.New("ranking has no snapshot")
	ErrEmptyCorpus   = errors.New("record set is empty")
	ErrUnknownKey    = errors.New("key not in snapshot")
	ErrUnknownRecord = errors.New("record not in snapshot")
	ErrNotReady      = errors.New("index not built")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
)

// AppError carries the message and status returned to HTTP clients while
// still matching its sentinel with errors.Is.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// statuses maps sentinels to HTTP statuses. The first match wins.
var statuses = []struct {
	err    error
	status int
}{
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrEmptyCorpus, http.StatusUnprocessableEntity},
	{ErrNotReady, http.StatusServiceUnavailable},
	{ErrNoSnapshot, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// HTTPStatusCode prefers an AppError's own status, then the sentinel table,
// and falls back to 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
