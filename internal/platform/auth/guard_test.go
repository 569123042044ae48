package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hems/hems/internal/platform/apperror"
)

func testPrincipal(role string, facilityID *uuid.UUID, countyID string) *Principal {
	return &Principal{
		ID:          uuid.New(),
		Role:        role,
		FacilityID:  facilityID,
		CountyID:    countyID,
		Permissions: PermissionsForRole(role),
	}
}

func TestHasPermission(t *testing.T) {
	p := testPrincipal(RoleDispatcher, nil, "")
	if !p.HasPermission("dispatch.write") {
		t.Error("expected dispatch.write")
	}
	if p.HasPermission("hospitals.write") {
		t.Error("dispatcher must not hold hospitals.write")
	}
}

func TestHasPermission_Wildcard(t *testing.T) {
	p := testPrincipal(RoleSuperAdmin, nil, "")
	if !p.HasPermission("anything.at.all") {
		t.Error("wildcard must grant every permission")
	}
}

func TestHasPermission_NilPrincipal(t *testing.T) {
	var p *Principal
	if p.HasPermission("dispatch.read") {
		t.Error("nil principal must have no permissions")
	}
}

func TestCheckScope_FacilityMatch(t *testing.T) {
	fid := uuid.New()
	p := testPrincipal(RoleHospitalAdmin, &fid, "nakuru")
	if err := p.CheckScope(fid, "nakuru"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckScope_FacilityMismatch(t *testing.T) {
	fid := uuid.New()
	p := testPrincipal(RoleHospitalAdmin, &fid, "nakuru")
	err := p.CheckScope(uuid.New(), "nakuru")
	if !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestCheckScope_CountyAdmin(t *testing.T) {
	p := testPrincipal(RoleCountyAdmin, nil, "nairobi")
	if err := p.CheckScope(uuid.New(), "nairobi"); err != nil {
		t.Errorf("county admin may act within own county: %v", err)
	}
	err := p.CheckScope(uuid.New(), "mombasa")
	if !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden across counties, got %v", err)
	}
}

func TestCheckScope_SuperAdminUnrestricted(t *testing.T) {
	fid := uuid.New()
	p := testPrincipal(RoleSuperAdmin, &fid, "")
	if err := p.CheckScope(uuid.New(), "anywhere"); err != nil {
		t.Errorf("super admin must not be scoped: %v", err)
	}
}

func TestRequirePermission(t *testing.T) {
	e := echo.New()
	handler := RequirePermission("transfers.write")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetRequest(req.WithContext(WithPrincipal(req.Context(), testPrincipal(RoleDoctor, nil, ""))))
	if err := handler(c); err != nil {
		t.Errorf("doctor holds transfers.write: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	c.SetRequest(req.WithContext(WithPrincipal(req.Context(), testPrincipal(RoleNurse, nil, ""))))
	err := handler(c)
	if !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden for nurse, got %v", err)
	}
}

func TestRequirePermission_NoPrincipal(t *testing.T) {
	e := echo.New()
	handler := RequirePermission("dispatch.read")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	err := handler(c)
	if !apperror.IsKind(err, apperror.KindUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}
