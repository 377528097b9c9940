package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPEnrollAndVerify(t *testing.T) {
	tp := NewTOTP("Sajilotantra")

	enrollment, err := tp.Enroll("citizen@example.np")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.True(t, strings.HasPrefix(enrollment.QRCodeURL, "data:image/png;base64,"))

	code, err := tp.Code(enrollment.Secret)
	require.NoError(t, err)
	assert.True(t, tp.Verify(enrollment.Secret, code))
	assert.False(t, tp.Verify(enrollment.Secret, "000000x"))

	// A code from far in the past is outside the skew window.
	tp.now = func() time.Time { return time.Now().Add(-10 * time.Minute) }
	old, err := tp.Code(enrollment.Secret)
	require.NoError(t, err)
	tp.now = time.Now
	if old != code {
		assert.False(t, tp.Verify(enrollment.Secret, old))
	}
}

func TestTOTPMatchReturnsTimeStep(t *testing.T) {
	now := time.Unix(1_700_000_010, 0).UTC()
	tp := NewTOTPWithClock("Sajilotantra", func() time.Time { return now })
	enrollment, err := tp.Enroll("citizen@example.np")
	require.NoError(t, err)

	code, err := tp.Code(enrollment.Secret)
	require.NoError(t, err)
	step, ok := tp.Match(enrollment.Secret, code)
	require.True(t, ok)
	assert.Equal(t, now.Unix()/30, step)

	// One period later the same code still matches, as the previous step.
	now = now.Add(30 * time.Second)
	step, ok = tp.Match(enrollment.Secret, code)
	require.True(t, ok)
	assert.Equal(t, now.Unix()/30-1, step)

	_, ok = tp.Match(enrollment.Secret, "12345")
	assert.False(t, ok)
}
