package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestRequestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewRequestError(http.StatusForbidden, cause)

	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable through Unwrap")
	}
	if got := StatusCode(err); got != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", got)
	}
}

func TestStatusCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("fetching comments: %w", NewRequestError(http.StatusUnauthorized, errors.New("bad credentials")))

	if got := StatusCode(err); got != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", got)
	}
	if !IsAuthError(err) {
		t.Error("IsAuthError = false, want true")
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unauthorized", NewRequestError(http.StatusUnauthorized, errors.New("x")), true},
		{"forbidden", NewRequestError(http.StatusForbidden, errors.New("x")), true},
		{"not found", NewRequestError(http.StatusNotFound, errors.New("x")), false},
		{"server error", NewRequestError(http.StatusInternalServerError, errors.New("x")), false},
		{"plain error", errors.New("x"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NewRequestError(http.StatusNotFound, errors.New("x"))) {
		t.Error("IsNotFound = false, want true for a 404")
	}
	if IsNotFound(NewRequestError(http.StatusForbidden, errors.New("x"))) {
		t.Error("IsNotFound = true, want false for a 403")
	}
}
