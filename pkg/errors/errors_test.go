package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

func TestBaseError_WrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewTransientConnectionError("connect failed", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected transient error to unwrap to its cause")
	}
	if err.Error() != "connect failed: dial tcp: connection refused" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestClassifiers(t *testing.T) {
	wrapped := fmt.Errorf("attempt 2: %w", NewAuthorizationError("session revoked", nil))

	if !IsAuthorization(wrapped) {
		t.Error("Expected wrapped authorization error to be detected")
	}
	if IsTransient(wrapped) {
		t.Error("Authorization error must not be transient")
	}
	if !IsTransient(NewTransientConnectionError("proxy timeout", nil)) {
		t.Error("Expected transient error to be detected")
	}
	if !IsRateLimited(NewRateLimitExceededError("flood wait", nil)) {
		t.Error("Expected rate limit error to be detected")
	}
	if !IsValidation(NewValidationErrorf("bad proxy %q", "x")) {
		t.Error("Expected validation error to be detected")
	}
	if !IsNotFound(NewNotFoundError("account not found")) {
		t.Error("Expected not found error to be detected")
	}
}

func TestMapper_MapErrorToHTTP(t *testing.T) {
	mapper := NewMapper(zerolog.Nop())

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"nil", nil, fasthttp.StatusOK},
		{"validation", NewValidationError("bad"), fasthttp.StatusBadRequest},
		{"authorization", NewAuthorizationError("denied", nil), fasthttp.StatusUnauthorized},
		{"not found", NewNotFoundError("missing"), fasthttp.StatusNotFound},
		{"no account", NewNoAccountAvailableError("none"), fasthttp.StatusConflict},
		{"rate limited", NewRateLimitExceededError("slow down", nil), fasthttp.StatusTooManyRequests},
		{"transient", NewTransientConnectionError("proxy", nil), fasthttp.StatusBadGateway},
		{"store", NewStoreUnavailableError("redis", nil), fasthttp.StatusServiceUnavailable},
		{"internal", NewInternalError("boom"), fasthttp.StatusInternalServerError},
		{"unknown", errors.New("plain"), fasthttp.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := mapper.MapErrorToHTTP(tt.err)
			if status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, status)
			}
		})
	}
}
