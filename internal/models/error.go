package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Login outcomes
var (
	ErrMissingSelection   = errors.New("account type selection is required")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// Password change outcomes
var (
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrConfirmationMismatch = errors.New("password confirmation does not match")
	ErrMustDiffer           = errors.New("new password must differ from the current one")
	ErrWeakPassword         = errors.New("password does not meet the strength policy")
)

// Guard outcomes
var (
	ErrBlocked          = errors.New("client address is temporarily blocked")
	ErrRateLimited      = errors.New("too many requests")
	ErrGuardUnavailable = errors.New("access guard unavailable")
)

var (
	ErrRoleRequired     = errors.New("at least one role is required")
	ErrSessionExpired   = errors.New("session expired")
	ErrPasswordChange   = errors.New("password change required")
	ErrUnknownShift     = errors.New("unknown shift")
	ErrSelfDeactivation = errors.New("accounts cannot deactivate themselves")
	ErrSelfDemotion     = errors.New("accounts cannot remove their own management role")
)
