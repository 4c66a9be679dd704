package auth

import "testing"

func TestHasPermissionNilUser(t *testing.T) {
	for _, perm := range []Permission{PermAccessDashboard, PermManageUsers, Permission("anything")} {
		if HasPermission(nil, perm) {
			t.Fatalf("nil user must never hold %s", perm)
		}
	}
}

func TestHasPermissionRoleTable(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleAdmin, PermManageUsers, true},
		{RoleAdmin, PermManageHospitals, true},
		{RoleDispatcher, PermManageHospitals, false},
		{RoleDispatcher, PermSendAlerts, true},
		{RoleDispatcher, PermReviewRequests, true},
		{RoleHospitalWorker, PermManageUsers, false},
		{RoleHospitalWorker, PermManageHospitals, true},
		{RoleHospitalWorker, PermViewMap, false},
		{RoleFirstResponder, PermViewMap, true},
		{RoleFirstResponder, PermSendAlerts, false},
		{RoleUser, PermAccessDashboard, true},
		{RoleUser, PermViewReports, false},
	}
	for _, tc := range cases {
		u := &User{ID: 1, Role: tc.role}
		if got := HasPermission(u, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestHasPermissionFailsClosed(t *testing.T) {
	admin := &User{ID: 1, Role: RoleAdmin}
	if HasPermission(admin, Permission("canLaunchRockets")) {
		t.Fatalf("unknown permission must resolve to false")
	}
	ghost := &User{ID: 2, Role: Role("superuser")}
	if HasPermission(ghost, PermAccessDashboard) {
		t.Fatalf("unknown role must resolve to false")
	}
}

func TestPermissionsForRoleCoversAllPermissions(t *testing.T) {
	table := PermissionsForRole(RoleFirstResponder)
	if len(table) != 8 {
		t.Fatalf("expected 8 permission flags, got %d", len(table))
	}
	if !table[PermViewMap] || table[PermManageUsers] {
		t.Fatalf("unexpected first_responder table: %v", table)
	}
	empty := PermissionsForRole(Role("nope"))
	for perm, granted := range empty {
		if granted {
			t.Fatalf("unknown role granted %s", perm)
		}
	}
}
