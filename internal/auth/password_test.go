package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"Str0ng!Pass", true},
		{"Aa1@aaaa", true},
		{"short1A!", true},
		{"Sh0rt!", false},
		{"alllowercase1!", false},
		{"ALLUPPERCASE1!", false},
		{"NoDigits!!", false},
		{"NoSpecial123", false},
		{"Has Space1!", false},
		{"Other#Special1", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrWeakPassword)
			}
		})
	}
}

func TestPasswordHistory(t *testing.T) {
	first, err := HashPassword("First1!pass")
	require.NoError(t, err)
	second, err := HashPassword("Second2!pass")
	require.NoError(t, err)

	history := PushHistory(nil, first, 2)
	history = PushHistory(history, second, 2)
	require.Len(t, history, 2)

	assert.ErrorIs(t, CheckHistory(history, "First1!pass"), ErrPasswordReused)
	assert.NoError(t, CheckHistory(history, "Third3!pass"))

	third, err := HashPassword("Third3!pass")
	require.NoError(t, err)
	history = PushHistory(history, third, 2)
	assert.Len(t, history, 2)
	assert.NoError(t, CheckHistory(history, "First1!pass"))
}

func TestGeneratedCodes(t *testing.T) {
	otp, err := GenerateOTP()
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{6}$`, otp)

	token, err := GenerateResetToken()
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{64}$`, token)

	assert.True(t, EqualCodes("abc123", "abc123"))
	assert.False(t, EqualCodes("abc123", "abc124"))
	assert.False(t, EqualCodes("abc123", "abc12"))
}
