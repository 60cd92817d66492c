package notifications

import "hrportal/internal/domain/apperror"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrNotFound = apperror.NotFound("Notification not found")
