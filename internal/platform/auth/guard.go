package auth

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hems/hems/internal/platform/apperror"
)

// HasPermission reports whether the principal holds the permission, either
// exactly or through the wildcard grant.
func (p *Principal) HasPermission(perm string) bool {
	if p == nil {
		return false
	}
	return p.Permissions[perm] || p.Permissions[PermissionAll]
}

// FacilityScoped reports whether the principal is restricted to a single
// facility. SUPER_ADMIN and COUNTY_ADMIN are not; everyone else with a
// facility assignment is.
func (p *Principal) FacilityScoped() bool {
	if p.Role == RoleSuperAdmin || p.Role == RoleCountyAdmin {
		return false
	}
	return p.FacilityID != nil
}

// CountyScoped reports whether the principal is restricted to one county.
func (p *Principal) CountyScoped() bool {
	return p.Role == RoleCountyAdmin
}

// CheckScope enforces facility/county scoping against the entity's owning
// hospital. hospitalID is the entity's facility; countyID is that
// facility's county (needed only for county-scoped principals). A scope
// violation is Forbidden even when the bare permission is held.
func (p *Principal) CheckScope(hospitalID uuid.UUID, countyID string) error {
	if p == nil {
		return apperror.Unauthenticated("not authenticated")
	}
	if p.FacilityScoped() && *p.FacilityID != hospitalID {
		return apperror.Forbidden("entity belongs to another facility")
	}
	if p.CountyScoped() && p.CountyID != countyID {
		return apperror.Forbidden("entity belongs to another county")
	}
	return nil
}

// RequirePermission returns middleware that rejects requests whose
// principal lacks the permission.
func RequirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return apperror.Unauthenticated("not authenticated")
			}
			if !p.HasPermission(perm) {
				return apperror.Forbidden("required permission: %s", perm)
			}
			return next(c)
		}
	}
}
