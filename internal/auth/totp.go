package auth

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPEnrollment is returned to the user when setting up an authenticator app.
type TOTPEnrollment struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qrCodeUrl"`
}

const totpPeriod = 30

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTP generates and checks RFC 6238 codes.
type TOTP struct {
	issuer string
	now    func() time.Time
}

// NewTOTP creates a TOTP helper for the given issuer name.
func NewTOTP(issuer string) *TOTP {
	return NewTOTPWithClock(issuer, time.Now)
}

// NewTOTPWithClock creates a TOTP helper that reads the time from now.
func NewTOTPWithClock(issuer string, now func() time.Time) *TOTP {
	return &TOTP{issuer: issuer, now: now}
}

// Enroll creates a new secret for account and renders its QR code as a data URL.
func (t *TOTP) Enroll(account string) (TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: account,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return TOTPEnrollment{}, fmt.Errorf("encode qr code: %w", err)
	}

	return TOTPEnrollment{
		Secret:    key.Secret(),
		QRCodeURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Verify checks code against secret, allowing one step of clock skew.
func (t *TOTP) Verify(secret, code string) bool {
	_, ok := t.Match(secret, code)
	return ok
}

// Match checks code like Verify and returns the time step it belongs to.
// Callers that must not accept a code twice compare steps.
func (t *TOTP) Match(secret, code string) (int64, bool) {
	if len(code) != int(totpOpts.Digits) {
		return 0, false
	}
	current := t.now().UTC().Unix() / totpPeriod
	for _, step := range []int64{current, current - 1, current + 1} {
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*totpPeriod, 0).UTC(), totpOpts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

// Code returns the current code for secret.
func (t *TOTP) Code(secret string) (string, error) {
	return totp.GenerateCodeCustom(secret, t.now().UTC(), totpOpts)
}
