package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{Unauthenticated("no token"), http.StatusUnauthorized},
		{Forbidden("missing permission"), http.StatusForbidden},
		{Validation("name is required"), http.StatusBadRequest},
		{NotFound("hospital not found"), http.StatusNotFound},
		{Conflict("duplicate code"), http.StatusConflict},
		{InvalidTransition("COMPLETED -> REQUESTED"), http.StatusConflict},
		{Internal(fmt.Errorf("pg down")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.status {
			t.Errorf("%v: expected status %d, got %d", tc.err, tc.status, got)
		}
	}
}

func TestFromWrapsUnknownAsInternal(t *testing.T) {
	err := From(fmt.Errorf("boom"))
	if err.Kind != KindInternal {
		t.Errorf("expected internal kind, got %d", err.Kind)
	}
	if err.Detail != "internal error" {
		t.Errorf("expected sanitized detail, got %q", err.Detail)
	}
}

func TestFromPreservesTypedErrors(t *testing.T) {
	orig := NotFound("transfer not found")
	wrapped := fmt.Errorf("service: %w", orig)
	got := From(wrapped)
	if got != orig {
		t.Error("expected original typed error back")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", Forbidden("out of scope"))
	if !IsKind(err, KindForbidden) {
		t.Error("expected forbidden kind through wrapping")
	}
	if IsKind(errors.New("plain"), KindForbidden) {
		t.Error("plain error should not match")
	}
}

func TestInternalHidesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Internal(cause)
	if err.Detail != "internal error" {
		t.Errorf("detail leaked: %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be wrapped for logging")
	}
}
