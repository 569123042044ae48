package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hems/hems/internal/platform/apperror"
)

func runAuthMiddleware(t *testing.T, req *http.Request) (*Principal, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Principal
	handler := Middleware(testSecret)(func(c echo.Context) error {
		got = PrincipalFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	return got, handler(c)
}

func TestMiddleware_BearerHeader(t *testing.T) {
	token, _ := IssueToken(testSecret, uuid.New(), RoleDoctor, "Dr. Otieno", "", "")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	p, err := runAuthMiddleware(t, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Role != RoleDoctor {
		t.Fatalf("expected doctor principal, got %+v", p)
	}
}

func TestMiddleware_TokenCookie(t *testing.T) {
	token, _ := IssueToken(testSecret, uuid.New(), RoleNurse, "", "", "")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.AddCookie(&http.Cookie{Name: AuthTokenCookie, Value: token})

	p, err := runAuthMiddleware(t, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Role != RoleNurse {
		t.Fatalf("expected nurse principal, got %+v", p)
	}
}

func TestMiddleware_MissingCredentials(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	_, err := runAuthMiddleware(t, req)
	if !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestMiddleware_GarbageToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	_, err := runAuthMiddleware(t, req)
	if !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}

func TestMiddleware_RejectsRefreshToken(t *testing.T) {
	token, _ := IssueRefreshToken(testSecret, uuid.New(), RoleNurse, "", "", "")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, err := runAuthMiddleware(t, req)
	if !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("refresh tokens must not authenticate requests, got %v", err)
	}
}

func TestMiddleware_RedirectCookieForBrowsers(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hospitals?limit=5", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(testSecret)(func(c echo.Context) error { return nil })
	_ = handler(c)

	found := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == RedirectURLCookie && cookie.Value == "/api/v1/hospitals?limit=5" {
			found = true
		}
	}
	if !found {
		t.Error("expected redirect_url cookie for unauthenticated browser request")
	}
}
