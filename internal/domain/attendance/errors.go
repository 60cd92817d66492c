package attendance

import "hrportal/internal/domain/apperror"

var (
	ErrNotFound       = apperror.NotFound("Attendance record not found")
	ErrInvalidStatus  = apperror.Validation("Invalid status")
	ErrInvalidDate    = apperror.Validation("Invalid date")
	ErrUnknownUser    = apperror.Validation("User is not approved or does not exist")
	ErrNoRecords      = apperror.Validation("No records")
	ErrAlreadyChecked = apperror.Conflict("You have already checked in today").WithCode("already_checked_in")
	ErrNotCheckedIn   = apperror.Conflict("Check in before checking out").WithCode("not_checked_in")
	ErrDayClosed      = apperror.Conflict("Attendance for today is already closed").WithCode("attendance_closed")
)
