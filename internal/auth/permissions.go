package auth

// Permission names a boolean capability gating a feature area. The set is a
// closed enumeration; checks against anything outside it fail closed.
type Permission string

const (
	PermAccessDashboard  Permission = "canAccessDashboard"
	PermManageHospitals  Permission = "canManageHospitals"
	PermManageResponders Permission = "canManageResponders"
	PermManageUsers      Permission = "canManageUsers"
	PermViewMap          Permission = "canViewMap"
	PermViewReports      Permission = "canViewReports"
	PermSendAlerts       Permission = "canSendAlerts"
	PermReviewRequests   Permission = "canReviewRequests"
)

// rolePermissions is the static role→capability table. Loaded once per
// process, immutable at runtime. Permissions absent from a role's set are
// denied.
var rolePermissions = map[Role]map[Permission]bool{
	RoleAdmin: grant(
		PermAccessDashboard, PermManageHospitals, PermManageResponders,
		PermManageUsers, PermViewMap, PermViewReports, PermSendAlerts,
		PermReviewRequests,
	),
	RoleDispatcher: grant(
		PermAccessDashboard, PermManageResponders, PermViewMap,
		PermViewReports, PermSendAlerts, PermReviewRequests,
	),
	RoleHospitalWorker: grant(
		PermAccessDashboard, PermManageHospitals,
	),
	RoleFirstResponder: grant(
		PermAccessDashboard, PermViewMap,
	),
	RoleUser: grant(
		PermAccessDashboard,
	),
}

func grant(perms ...Permission) map[Permission]bool {
	set := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return set
}

// HasPermission reports whether the user's role grants the permission.
// A nil (unauthenticated) user never has any permission, and unknown roles
// or permission names resolve to false.
func HasPermission(u *User, perm Permission) bool {
	if u == nil {
		return false
	}
	return rolePermissions[u.Role][perm]
}

// PermissionsForRole returns the capability flags for a role, with every
// known permission present. Unknown roles get an all-false table.
func PermissionsForRole(role Role) map[Permission]bool {
	all := []Permission{
		PermAccessDashboard, PermManageHospitals, PermManageResponders,
		PermManageUsers, PermViewMap, PermViewReports, PermSendAlerts,
		PermReviewRequests,
	}
	out := make(map[Permission]bool, len(all))
	granted := rolePermissions[role]
	for _, p := range all {
		out[p] = granted[p]
	}
	return out
}
