package auth

import (
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// PasswordPolicy is the user-facing description of the password rules.
const PasswordPolicy = "Password must be at least 8 characters long, contain at least one uppercase letter, one lowercase letter, one number, and one special character (@$!%*?&)."

var (
	// ErrWeakPassword is returned when a password does not satisfy the policy.
	ErrWeakPassword = errors.New("password does not satisfy policy")
	// ErrPasswordReused is returned when a password matches a recent one.
	ErrPasswordReused = errors.New("password was used recently")
)

var (
	allowedChars = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,}$`)
	hasLower     = regexp.MustCompile(`[a-z]`)
	hasUpper     = regexp.MustCompile(`[A-Z]`)
	hasDigit     = regexp.MustCompile(`\d`)
	hasSpecial   = regexp.MustCompile(`[@$!%*?&]`)
)

// ValidatePassword enforces the password policy.
func ValidatePassword(password string) error {
	if !allowedChars.MatchString(password) ||
		!hasLower.MatchString(password) ||
		!hasUpper.MatchString(password) ||
		!hasDigit.MatchString(password) ||
		!hasSpecial.MatchString(password) {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckHistory returns ErrPasswordReused when password matches any hash in history.
func CheckHistory(history []string, password string) error {
	for _, h := range history {
		if CheckPassword(h, password) {
			return ErrPasswordReused
		}
	}
	return nil
}

// PushHistory prepends hash and keeps at most limit entries.
func PushHistory(history []string, hash string, limit int) []string {
	out := append([]string{hash}, history...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
