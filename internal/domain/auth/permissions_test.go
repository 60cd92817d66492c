package auth

import (
	"context"
	"testing"
)

func TestStaticPermissions(t *testing.T) {
	perms := StaticPermissions{}
	cases := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleEmployee, PermLeaveApply, true},
		{RoleEmployee, PermLeaveReview, false},
		{RoleEmployee, PermUsersRead, false},
		{RoleHR, PermLeaveReview, true},
		{RoleHR, PermUsersWrite, false},
		{RoleAdmin, PermUsersWrite, true},
		{RoleSuperAdmin, PermSystemAdmin, true},
		{RoleEmployee, PermAttendanceSelf, true},
		{RoleEmployee, PermAttendanceMark, false},
		{RoleEmployee, PermOvertimeReport, false},
		{RoleEmployee, PermFuelVerify, false},
		{RoleHR, PermAttendanceMark, true},
		{RoleHR, PermAttendanceSelf, false},
		{RoleHR, PermFuelVerify, true},
		{RoleSuperAdmin, PermOvertimeReport, true},
		{"unknown", PermLeaveRead, false},
	}
	for _, tc := range cases {
		got, err := perms.HasPermission(context.Background(), tc.role, tc.permission)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Fatalf("%s/%s: expected %v, got %v", tc.role, tc.permission, tc.want, got)
		}
	}
}

func TestEveryAdminRoleCanReviewLeave(t *testing.T) {
	for _, role := range AdminRoles {
		ok, _ := StaticPermissions{}.HasPermission(context.Background(), role, PermLeaveReview)
		if !ok {
			t.Fatalf("expected %s to review leave", role)
		}
	}
}
