package overtime

import "hrportal/internal/domain/apperror"

var (
	ErrNotFound          = apperror.NotFound("Overtime claim not found")
	ErrUserNotFound      = apperror.NotFound("User not found")
	ErrForbidden         = apperror.Forbidden("Forbidden")
	ErrAdminOnlySalary   = apperror.Forbidden("Only admin roles can update salary")
	ErrAdminOnlyVerify   = apperror.Forbidden("Only admin roles can verify")
	ErrAdminOnlyReport   = apperror.Forbidden("Only admin roles can view overtime reports")
	ErrVerifiedDelete    = apperror.Forbidden("Verified claims can only be deleted by admin")
	ErrNegativeSalary    = apperror.Validation("Salary must be a non-negative number")
	ErrInvalidDate       = apperror.Validation("Invalid date supplied for overtime claim")
	ErrBranchRequired    = apperror.Validation("Branch name is required")
	ErrMissingProfile    = apperror.Validation("Instructor name is missing on user profile")
	ErrMissingSalary     = apperror.Validation("Salary missing on user profile")
	ErrMissingTitle      = apperror.Validation("Instructor designation is required on user profile")
	ErrInvalidYearMonth  = apperror.Validation("Provide numeric year and month (1-12)")
	ErrInvalidInstructor = apperror.Validation("Invalid instructor reference")
	ErrInvalidDateFilter = apperror.Validation("Invalid date filter")
)
