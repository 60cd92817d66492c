package auth

import (
	"context"
	"slices"
)

const (
	PermLeaveRead     = "leave.read"
	PermLeaveApply    = "leave.apply"
	PermLeaveReview   = "leave.review"
	PermLeaveAllocate = "leave.allocate"
	PermUsersRead     = "users.read"
	PermUsersWrite    = "users.write"
	PermAuditRead     = "audit.read"
	PermSystemAdmin   = "admin.system"

	PermAttendanceRead   = "attendance.read"
	PermAttendanceMark   = "attendance.mark"
	PermAttendanceSelf   = "attendance.self"
	PermAttendanceReport = "attendance.report"
	PermOvertimeClaim    = "overtime.claim"
	PermOvertimeReport   = "overtime.report"
	PermFuelClaim        = "fuel.claim"
	PermFuelVerify       = "fuel.verify"
)

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermLeaveRead,
		PermLeaveApply,
		PermAttendanceRead,
		PermAttendanceSelf,
		PermOvertimeClaim,
		PermFuelClaim,
	},
	RoleHR: {
		PermLeaveRead,
		PermLeaveApply,
		PermLeaveReview,
		PermLeaveAllocate,
		PermUsersRead,
		PermAuditRead,
		PermAttendanceRead,
		PermAttendanceMark,
		PermAttendanceReport,
		PermOvertimeClaim,
		PermOvertimeReport,
		PermFuelClaim,
		PermFuelVerify,
	},
	RoleAdmin: {
		PermLeaveRead,
		PermLeaveApply,
		PermLeaveReview,
		PermLeaveAllocate,
		PermUsersRead,
		PermUsersWrite,
		PermAuditRead,
		PermAttendanceRead,
		PermAttendanceMark,
		PermAttendanceReport,
		PermOvertimeClaim,
		PermOvertimeReport,
		PermFuelClaim,
		PermFuelVerify,
	},
	RoleSuperAdmin: {
		PermLeaveRead,
		PermLeaveApply,
		PermLeaveReview,
		PermLeaveAllocate,
		PermUsersRead,
		PermUsersWrite,
		PermAuditRead,
		PermAttendanceRead,
		PermAttendanceMark,
		PermAttendanceReport,
		PermOvertimeClaim,
		PermOvertimeReport,
		PermFuelClaim,
		PermFuelVerify,
		PermSystemAdmin,
	},
}

// StaticPermissions resolves permissions from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	return slices.Contains(RolePermissions[role], permission), nil
}
