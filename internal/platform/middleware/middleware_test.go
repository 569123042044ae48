package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hems/hems/internal/platform/apperror"
)

func newTestContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequestID_Generates(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/")
	handler := RequestID()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rid, _ := c.Get("request_id").(string)
	if rid == "" {
		t.Error("expected generated request id on context")
	}
	if rec.Header().Get(RequestIDHeader) != rid {
		t.Error("request id must be echoed in the response header")
	}
}

func TestRequestID_HonorsClientHeader(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, "client-supplied")
	handler := RequestID()(func(c echo.Context) error { return nil })
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) != "client-supplied" {
		t.Error("client-supplied request id must be preserved")
	}
}

func TestRecovery_ConvertsPanic(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/")
	handler := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("boom")
	})
	err := handler(c)
	if !apperror.IsKind(err, apperror.KindInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3})
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 3; i++ {
		c, _ := newTestContext(http.MethodGet, "/")
		if err := handler(c); err != nil {
			t.Fatalf("request %d within burst rejected: %v", i, err)
		}
	}

	c, rec := newTestContext(http.MethodGet, "/")
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the burst, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on rejection")
	}
}

func TestRateLimit_SeparateClients(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c1, _ := newTestContext(http.MethodGet, "/")
	c1.Request().Header.Set("X-Real-IP", "10.0.0.1")
	if err := handler(c1); err != nil {
		t.Fatalf("first client rejected: %v", err)
	}

	c2, _ := newTestContext(http.MethodGet, "/")
	c2.Request().Header.Set("X-Real-IP", "10.0.0.2")
	if err := handler(c2); err != nil {
		t.Fatalf("second client must have its own bucket: %v", err)
	}
}

func TestSecurityHeaders(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/")
	handler := SecurityHeaders()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s: expected %q, got %q", header, want, got)
		}
	}
}

func TestRequestTimeout_Expires(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/")
	handler := RequestTimeout(10 * time.Millisecond)(func(c echo.Context) error {
		select {
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %v", err)
	}
}

func TestRequestTimeout_FastHandler(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/")
	handler := RequestTimeout(time.Second)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
