package auth

// Roles recognized by the permission model. Tokens carry one of these;
// anything else falls back to the basic permission set.
const (
	RoleSuperAdmin      = "SUPER_ADMIN"
	RoleCountyAdmin     = "COUNTY_ADMIN"
	RoleHospitalAdmin   = "HOSPITAL_ADMIN"
	RoleDoctor          = "DOCTOR"
	RoleNurse           = "NURSE"
	RoleTriageOfficer   = "TRIAGE_OFFICER"
	RoleDispatcher      = "DISPATCHER"
	RoleAmbulanceDriver = "AMBULANCE_DRIVER"
	RoleFinanceOfficer  = "FINANCE_OFFICER"
	RoleLabTechnician   = "LAB_TECHNICIAN"
	RolePharmacist      = "PHARMACIST"
)

// PermissionAll grants every permission.
const PermissionAll = "*"

// basicPermissions is the mandatory baseline every authenticated principal
// carries regardless of role, even when a token predates a table change.
var basicPermissions = []string{"profile.read", "notifications.read"}

// rolePermissions is the static role -> permission table. It is built once
// and never mutated at runtime.
var rolePermissions = map[string][]string{
	RoleSuperAdmin: {PermissionAll},
	RoleCountyAdmin: {
		"hospitals.read", "hospitals.write",
		"patients.read",
		"triage.read",
		"dispatch.read", "dispatch.write",
		"transfers.read", "transfers.write",
		"telemedicine.read",
		"staff.read", "staff.write",
		"resources.read",
		"audit.read",
		"reports.read",
	},
	RoleHospitalAdmin: {
		"hospitals.read",
		"patients.read", "patients.write",
		"triage.read",
		"dispatch.read",
		"transfers.read", "transfers.write",
		"telemedicine.read", "telemedicine.write",
		"staff.read", "staff.write",
		"resources.read", "resources.write",
		"audit.read",
	},
	RoleDoctor: {
		"patients.read", "patients.write",
		"triage.read", "triage.write",
		"transfers.read", "transfers.write",
		"telemedicine.read", "telemedicine.write",
		"resources.read",
	},
	RoleNurse: {
		"patients.read", "patients.write",
		"triage.read", "triage.write",
		"telemedicine.read",
		"resources.read",
	},
	RoleTriageOfficer: {
		"patients.read",
		"triage.read", "triage.write",
	},
	RoleDispatcher: {
		"hospitals.read",
		"dispatch.read", "dispatch.write",
		"resources.read",
	},
	RoleAmbulanceDriver: {
		"dispatch.read",
	},
	RoleFinanceOfficer: {
		"resources.read",
		"reports.read",
	},
	RoleLabTechnician: {
		"patients.read",
	},
	RolePharmacist: {
		"patients.read",
		"resources.read", "resources.write",
	},
}

// PermissionsForRole returns the permission set for a role. Unknown roles
// get only the basic set. The returned map is a fresh copy; callers may
// extend it without affecting the table.
func PermissionsForRole(role string) map[string]bool {
	perms := make(map[string]bool, len(rolePermissions[role])+len(basicPermissions))
	for _, p := range rolePermissions[role] {
		perms[p] = true
	}
	return EnsureBasicPermissions(perms)
}

// EnsureBasicPermissions guarantees the mandatory baseline is present in
// the given set and returns it.
func EnsureBasicPermissions(perms map[string]bool) map[string]bool {
	if perms == nil {
		perms = make(map[string]bool, len(basicPermissions))
	}
	for _, p := range basicPermissions {
		perms[p] = true
	}
	return perms
}

// KnownRole reports whether role is one the permission table recognizes.
func KnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}
