package fuel

import "hrportal/internal/domain/apperror"

var (
	ErrNotFound        = apperror.NotFound("Fuel requisition not found")
	ErrItemNotFound    = apperror.NotFound("Line item not found")
	ErrForbidden       = apperror.Forbidden("Forbidden")
	ErrAdminOnlyVerify = apperror.Forbidden("Only admins can verify requisitions")
	ErrAdminOnlyReview = apperror.Forbidden("Only admin roles can approve or reject requisitions")
	ErrPeriodRequired  = apperror.Validation("month and year are required")
	ErrInvalidMonth    = apperror.Validation("Invalid month")
	ErrInvalidYear     = apperror.Validation("Invalid year")
	ErrInvalidStatus   = apperror.Validation("Invalid status value")
	ErrItemsRequired   = apperror.Validation("At least one line item is required")
	ErrPeriodTaken     = apperror.Conflict("A requisition already exists for this month").WithCode("period_taken")
	ErrVersionConflict = apperror.Conflict("Requisition was modified by another request. Reload and try again.").WithCode("version_conflict")
)
