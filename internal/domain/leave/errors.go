package leave

import (
	"fmt"

	"hrportal/internal/domain/apperror"
)

var (
	ErrNotFound        = apperror.NotFound("Leave not found")
	ErrForbidden       = apperror.Forbidden("Forbidden")
	ErrVersionConflict = apperror.Conflict("Leave was modified by another request. Reload and try again.").WithCode("version_conflict")
	ErrNotAssigned     = apperror.Forbidden("You are not assigned to this leave")
)

// AllowanceExceededError rejects an acceptance that would overrun the yearly cap.
func AllowanceExceededError(remaining float64) *apperror.Error {
	return apperror.Validation(fmt.Sprintf("Annual leave limit exceeded. Remaining leaves: %s", formatDays(remaining))).
		WithCode("allowance_exceeded").
		WithDetails(map[string]any{"remaining": remaining})
}
