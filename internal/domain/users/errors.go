package users

import "hrportal/internal/domain/apperror"

var (
	ErrNotFound   = apperror.NotFound("User not found")
	ErrEmailTaken = apperror.Conflict("Email already in use")
)
