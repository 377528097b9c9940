package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// GenerateOTP returns a six character hex one-time code.
func GenerateOTP() (string, error) {
	return randomHex(3)
}

// GenerateResetToken returns a 64 character hex password-reset token.
func GenerateResetToken() (string, error) {
	return randomHex(32)
}

// EqualCodes compares secrets in constant time.
func EqualCodes(a, b string) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
