package models

import "testing"

func TestPermissionTableCoversAllRoles(t *testing.T) {
	if err := ValidatePermissionTable(); err != nil {
		t.Fatalf("permission table: %v", err)
	}
}

func TestUnknownRoleGetsAnonymousPermissions(t *testing.T) {
	perms := PermissionsFor(Role("intruder"))
	if perms.Has(CapCreateRoom) {
		t.Error("unknown role can create rooms")
	}
	if !perms.Has(CapRequestCrisisHelp) {
		t.Error("unknown role cannot ask for crisis help; the floor must always allow it")
	}
}

func TestRoleChecks(t *testing.T) {
	if !IsCounselorRole(RoleCounselor) || !IsCounselorRole(RoleAdmin) {
		t.Error("counselor and admin must count as counselor roles")
	}
	if IsCounselorRole(RoleHelper) {
		t.Error("helper counted as counselor role")
	}
	if !IsModeratorRole(RoleModerator) || !IsModeratorRole(RoleAdmin) {
		t.Error("moderator and admin must count as moderator roles")
	}
	if IsModeratorRole(RoleUser) {
		t.Error("user counted as moderator role")
	}
}
