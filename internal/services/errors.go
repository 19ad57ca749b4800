package services

import (
	"errors"

	"github.com/prolynk/backend/internal/apperrors"
	"github.com/prolynk/backend/internal/models"
)

var (
	ErrProfileNotFound  = apperrors.NotFound("Profile not found")
	ErrAccountNotFound  = apperrors.NotFound("User not found")
	ErrLinkNotFound     = apperrors.NotFound("Link not found")
	ErrUsernameTaken    = apperrors.Conflict("Username is already taken")
	ErrUsernameLocked   = apperrors.Conflict("Username cannot be changed once claimed")
	ErrConcurrentUpdate = apperrors.Conflict("Profile was modified concurrently, please retry")
	ErrUsernameRequired = apperrors.Validation("Username is required")
	ErrUsernameMissing  = apperrors.Validation("Username parameter is required")
	ErrUsernameInvalid  = apperrors.Validation(models.UsernameRuleMessage)
	ErrForeignKey       = apperrors.Validation("Object key does not belong to the caller")
	ErrUnauthenticated  = apperrors.Unauthorized("Unauthorized")
)

// Store-level signals. These never reach a client directly.
var (
	// ErrVersionConflict means a conditional profile write lost: the username
	// was claimed, or the stored version moved, since it was read.
	ErrVersionConflict = errors.New("profile version conflict")
	ErrAccountExists   = errors.New("account already exists")
)
