package services

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/sajilotantra/sajilotantra-be/internal/auth"
	"github.com/sajilotantra/sajilotantra-be/internal/email"
	"go.uber.org/mock/gomock"
)

func (s *ServiceSuite) TestRegisterCreatesUnverifiedUser() {
	user, otp := s.register("Sita@Example.com")

	s.Equal("sita@example.com", user.Email)
	s.False(user.Verified)
	s.Regexp(`^[0-9a-f]{6}$`, otp)
	s.Len(user.PasswordHistory, 1)

	stored, err := s.users.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.NotEqual(testPassword, stored.PasswordHash)
	s.True(auth.CheckPassword(stored.PasswordHash, testPassword))
}

func (s *ServiceSuite) TestRegisterRejectsDuplicateEmail() {
	s.register("sita@example.com")

	_, err := s.users.Register(s.ctx, RegisterInput{
		FirstName: "Other", LastName: "Person", Email: " SITA@example.com", Password: testPassword,
	})
	s.ErrorIs(err, ErrUserExists)

	users, err := s.users.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 1)
}

func (s *ServiceSuite) TestRegisterValidatesInput() {
	_, err := s.users.Register(s.ctx, RegisterInput{FirstName: "A", LastName: "B", Email: "a@b.co", Password: "weakpass"})
	s.ErrorIs(err, auth.ErrWeakPassword)

	_, err = s.users.Register(s.ctx, RegisterInput{FirstName: "A", Email: "a@b.co", Password: testPassword})
	var verr *ValidationError
	s.ErrorAs(err, &verr)
}

func (s *ServiceSuite) TestRegisterRollsBackWhenEmailFails() {
	s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	_, err := s.users.Register(s.ctx, RegisterInput{FirstName: "A", LastName: "B", Email: "a@b.co", Password: testPassword})
	s.Error(err)

	_, err = s.users.GetUserByEmail(s.ctx, "a@b.co")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestVerifyOTP() {
	user, otp := s.register("sita@example.com")

	wrong := "000000"
	if otp == wrong {
		wrong = "111111"
	}
	_, err := s.users.VerifyOTP(s.ctx, user.Email, wrong)
	s.ErrorIs(err, ErrInvalidOTP)

	stored, err := s.users.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.False(stored.Verified)
	s.Require().NotNil(stored.OTP)
	s.Equal(otp, *stored.OTP)

	res, err := s.users.VerifyOTP(s.ctx, user.Email, otp)
	s.Require().NoError(err)
	s.True(res.User.Verified)
	claims, err := s.tokens.Validate(res.Token)
	s.Require().NoError(err)
	s.Equal(user.ID, claims.UserID)

	// The code is consumed.
	_, err = s.users.VerifyOTP(s.ctx, user.Email, otp)
	s.ErrorIs(err, ErrInvalidOTP)
}

func (s *ServiceSuite) TestVerifyOTPExpired() {
	user, otp := s.register("sita@example.com")
	s.shiftClock(11 * time.Minute)

	_, err := s.users.VerifyOTP(s.ctx, user.Email, otp)
	s.ErrorIs(err, ErrInvalidOTP)

	stored, err := s.users.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.False(stored.Verified)
}

func (s *ServiceSuite) TestVerifyOTPUnknownEmail() {
	_, err := s.users.VerifyOTP(s.ctx, "nobody@example.com", "abcdef")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestResendOTP() {
	user, first := s.register("sita@example.com")

	s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.Require().NoError(s.users.ResendOTP(s.ctx, user.Email))

	var second string
	s.Require().NoError(s.db.Get(&second, `SELECT otp FROM users WHERE id = ?`, user.ID))
	if second != first {
		_, err := s.users.VerifyOTP(s.ctx, user.Email, first)
		s.ErrorIs(err, ErrInvalidOTP)
	}
	_, err := s.users.VerifyOTP(s.ctx, user.Email, second)
	s.Require().NoError(err)

	s.ErrorIs(s.users.ResendOTP(s.ctx, user.Email), ErrAlreadyVerified)
}

func (s *ServiceSuite) TestLoginLocksAfterRepeatedFailures() {
	user := s.verifiedUser("sita@example.com")

	for i := 1; i < 5; i++ {
		_, err := s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: "Wr0ng@Pass"})
		s.ErrorIs(err, ErrInvalidCredentials, "attempt %d", i)
	}

	_, err := s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: "Wr0ng@Pass"})
	var locked *LockedError
	s.Require().ErrorAs(err, &locked)
	s.True(locked.JustLocked)
	s.ErrorIs(err, ErrAccountLocked)

	// Even the right password is refused while locked.
	_, err = s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword})
	s.Require().ErrorAs(err, &locked)
	s.False(locked.JustLocked)
	s.Greater(locked.Seconds(), 0)
	s.LessOrEqual(locked.Seconds(), 60)

	s.shiftClock(61 * time.Second)
	res, err := s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword})
	s.Require().NoError(err)
	s.NotEmpty(res.Token)

	stored, err := s.users.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Zero(stored.FailedLoginAttempts)
	s.Nil(stored.LockUntil)
}

func (s *ServiceSuite) TestLoginRejectsUnknownAndUnverified() {
	_, err := s.users.Login(s.ctx, LoginInput{Email: "nobody@example.com", Password: testPassword})
	s.ErrorIs(err, ErrInvalidCredentials)

	user, _ := s.register("sita@example.com")
	_, err = s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword})
	s.ErrorIs(err, ErrNotVerified)
}

func (s *ServiceSuite) TestExpiredPasswordMustBeChanged() {
	user := s.verifiedUser("sita@example.com")
	s.shiftClock(31 * 24 * time.Hour)

	_, err := s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword})
	s.ErrorIs(err, ErrPasswordExpired)

	err = s.users.ChangePassword(s.ctx, user.Email, testPassword, testPassword)
	s.ErrorIs(err, auth.ErrPasswordReused)

	s.Require().NoError(s.users.ChangePassword(s.ctx, user.Email, testPassword, "N3w@Password"))
	_, err = s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: "N3w@Password"})
	s.NoError(err)
}

func (s *ServiceSuite) TestLoginWithMFA() {
	user := s.verifiedUser("sita@example.com")

	enrollment, err := s.mfa.Setup(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Contains(enrollment.QRCodeURL, "data:image/png;base64,")

	// Pending enrolment does not yet guard the login.
	_, err = s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword})
	s.Require().NoError(err)

	s.ErrorIs(s.mfa.Verify(s.ctx, user.ID, "000000x"), ErrInvalidMFA)
	code, err := s.totp.Code(enrollment.Secret)
	s.Require().NoError(err)
	s.Require().NoError(s.mfa.Verify(s.ctx, user.ID, code))

	_, err = s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword})
	s.ErrorIs(err, ErrMFARequired)

	_, err = s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword, MFACode: "12345x"})
	s.ErrorIs(err, ErrInvalidMFA)

	// The enrolment code was already used.
	_, err = s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword, MFACode: code})
	s.ErrorIs(err, ErrInvalidMFA)

	code = s.nextTOTPCode(enrollment.Secret)
	res, err := s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword, MFACode: code})
	s.Require().NoError(err)
	s.True(res.User.MFAEnabled)

	s.ErrorIs(s.mfa.Disable(s.ctx, user.ID, code), ErrInvalidMFA)
	s.Require().NoError(s.mfa.Disable(s.ctx, user.ID, s.nextTOTPCode(enrollment.Secret)))
	s.ErrorIs(s.mfa.Verify(s.ctx, user.ID, code), ErrMFANotEnabled)
}

func (s *ServiceSuite) TestMFASetupRefusedWhileEnabled() {
	user := s.verifiedUser("sita@example.com")

	enrollment, err := s.mfa.Setup(s.ctx, user.ID)
	s.Require().NoError(err)
	code, err := s.totp.Code(enrollment.Secret)
	s.Require().NoError(err)
	s.Require().NoError(s.mfa.Verify(s.ctx, user.ID, code))

	_, err = s.mfa.Setup(s.ctx, user.ID)
	s.ErrorIs(err, ErrMFAAlreadyEnabled)

	var secret string
	s.Require().NoError(s.db.Get(&secret, `SELECT mfa_secret FROM users WHERE id = ?`, user.ID))
	s.Equal(enrollment.Secret, secret)
	_, err = s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: testPassword})
	s.ErrorIs(err, ErrMFARequired)

	// After disabling, a new enrolment is allowed.
	s.Require().NoError(s.mfa.Disable(s.ctx, user.ID, s.nextTOTPCode(enrollment.Secret)))
	_, err = s.mfa.Setup(s.ctx, user.ID)
	s.NoError(err)
}

var resetTokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

// requestReset asks for a reset link and returns the token it carries.
func (s *ServiceSuite) requestReset(emailAddr string) string {
	var sent email.Message
	s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg email.Message) error {
		sent = msg
		return nil
	})
	s.Require().NoError(s.users.RequestPasswordReset(s.ctx, emailAddr))
	m := resetTokenPattern.FindStringSubmatch(sent.Text)
	s.Require().Len(m, 2, "reset link missing from %q", sent.Text)
	return m[1]
}

func (s *ServiceSuite) TestResetTokenIsSingleUse() {
	user := s.verifiedUser("sita@example.com")
	token := s.requestReset(user.Email)

	var stored string
	s.Require().NoError(s.db.Get(&stored, `SELECT reset_token FROM users WHERE id = ?`, user.ID))
	s.NotEqual(token, stored)

	s.Require().NoError(s.users.ResetPassword(s.ctx, token, "N3w@Password"))
	s.ErrorIs(s.users.ResetPassword(s.ctx, token, "An0ther@Pass"), ErrInvalidResetToken)

	_, err := s.users.Login(s.ctx, LoginInput{Email: user.Email, Password: "N3w@Password"})
	s.NoError(err)
}

func (s *ServiceSuite) TestResetPasswordRules() {
	user := s.verifiedUser("sita@example.com")

	s.ErrorIs(s.users.ResetPassword(s.ctx, "", "N3w@Password"), ErrInvalidResetToken)
	s.ErrorIs(s.users.RequestPasswordReset(s.ctx, "nobody@example.com"), ErrNotFound)

	token := s.requestReset(user.Email)
	s.ErrorIs(s.users.ResetPassword(s.ctx, token, testPassword), auth.ErrPasswordReused)
	s.ErrorIs(s.users.ResetPassword(s.ctx, token, "short"), auth.ErrWeakPassword)

	s.shiftClock(11 * time.Minute)
	s.ErrorIs(s.users.ResetPassword(s.ctx, token, "N3w@Password"), ErrInvalidResetToken)
}

func (s *ServiceSuite) TestUpdateProfile() {
	user := s.verifiedUser("sita@example.com")

	_, err := s.users.UpdateProfile(s.ctx, user.ID, ProfileUpdate{})
	s.ErrorIs(err, ErrNothingToUpdate)

	bio := "  Civic enthusiast "
	updated, err := s.users.UpdateProfile(s.ctx, user.ID, ProfileUpdate{Bio: &bio, Cover: "/uploads/covers/c.png"})
	s.Require().NoError(err)
	s.Equal("Civic enthusiast", updated.Bio)
	s.Equal("/uploads/covers/c.png", updated.Cover)

	s.Require().NoError(s.users.PromoteByEmail(s.ctx, user.Email))
	stored, err := s.users.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.True(stored.IsAdmin)

	s.Require().NoError(s.users.DeleteUser(s.ctx, user.ID))
	s.ErrorIs(s.users.DeleteUser(s.ctx, user.ID), ErrNotFound)
}
