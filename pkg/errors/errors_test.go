package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("parse: %w", ErrInvalidInput), http.StatusBadRequest},
		{"not ready", ErrNotReady, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("search: %w", ErrTimeout), http.StatusServiceUnavailable},
		{"app error", New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad"), http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"empty corpus", fmt.Errorf("build: %w", ErrEmptyCorpus), http.StatusUnprocessableEntity},
		{"no snapshot", ErrNoSnapshot, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d", -1))
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("AppError should unwrap to its sentinel")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Message != "limit -1" {
		t.Errorf("AppError = %+v", appErr)
	}
	if appErr.Error() != "invalid input: limit -1" {
		t.Errorf("Error() = %q", appErr.Error())
	}
}
