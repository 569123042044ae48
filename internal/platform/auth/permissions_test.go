package auth

import "testing"

func TestPermissionsForRole_SuperAdminWildcard(t *testing.T) {
	perms := PermissionsForRole(RoleSuperAdmin)
	if !perms[PermissionAll] {
		t.Error("expected wildcard permission for SUPER_ADMIN")
	}
}

func TestPermissionsForRole_Dispatcher(t *testing.T) {
	perms := PermissionsForRole(RoleDispatcher)
	if !perms["dispatch.write"] {
		t.Error("expected dispatch.write for DISPATCHER")
	}
	if perms["transfers.write"] {
		t.Error("DISPATCHER must not hold transfers.write")
	}
}

func TestPermissionsForRole_UnknownRoleGetsBasicSet(t *testing.T) {
	perms := PermissionsForRole("JANITOR")
	if !perms["profile.read"] {
		t.Error("expected basic profile.read for unknown role")
	}
	if len(perms) != 2 {
		t.Errorf("expected only the basic set, got %d permissions", len(perms))
	}
}

func TestPermissionsForRole_AlwaysIncludesBasics(t *testing.T) {
	for role := range rolePermissions {
		perms := PermissionsForRole(role)
		if !perms["profile.read"] || !perms["notifications.read"] {
			t.Errorf("role %s missing mandatory baseline", role)
		}
	}
}

func TestPermissionsForRole_ReturnsCopy(t *testing.T) {
	a := PermissionsForRole(RoleNurse)
	a["hospitals.write"] = true
	b := PermissionsForRole(RoleNurse)
	if b["hospitals.write"] {
		t.Error("mutating a returned set must not affect the table")
	}
}

func TestEnsureBasicPermissions_NilMap(t *testing.T) {
	perms := EnsureBasicPermissions(nil)
	if !perms["profile.read"] {
		t.Error("expected baseline on nil input")
	}
}

func TestKnownRole(t *testing.T) {
	if !KnownRole(RoleDoctor) {
		t.Error("DOCTOR should be known")
	}
	if KnownRole("doctor") {
		t.Error("role matching is case-sensitive")
	}
}
