package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors returned by the services. Handlers map them to HTTP responses.
var (
	ErrNotFound           = errors.New("not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrNotVerified        = errors.New("account not verified")
	ErrAccountLocked      = errors.New("account locked")
	ErrPasswordExpired    = errors.New("password expired")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrMFARequired        = errors.New("mfa code required")
	ErrInvalidMFA         = errors.New("invalid mfa code")
	ErrMFANotEnabled      = errors.New("mfa not enabled")
	ErrMFAAlreadyEnabled  = errors.New("mfa already enabled")
	ErrNothingToUpdate    = errors.New("nothing to update")
	ErrAlreadyLiked       = errors.New("post already liked")
	ErrNotLiked           = errors.New("post not liked")
	ErrAlreadyFollowing   = errors.New("already following")
	ErrForbidden          = errors.New("forbidden")
	ErrGateway            = errors.New("payment gateway error")
	ErrDocumentNotFound   = errors.New("document not found")
)

// ValidationError carries a user-facing message for a rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid builds a ValidationError.
func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// LockedError reports how long an account stays locked. JustLocked is set
// when the failed attempt being handled triggered the lock.
type LockedError struct {
	Remaining  time.Duration
	JustLocked bool
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %s", e.Remaining)
}

// Is makes errors.Is(err, ErrAccountLocked) hold.
func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// Seconds returns the remaining lock time rounded up to whole seconds.
func (e *LockedError) Seconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}
