package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sajilotantra/sajilotantra-be/internal/auth"
)

// MFAServiceProvider defines the interface for second-factor management.
type MFAServiceProvider interface {
	Setup(ctx context.Context, userID string) (auth.TOTPEnrollment, error)
	Verify(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, code string) error
}

// MFAService enrols and checks authenticator-app codes.
type MFAService struct {
	db    *sqlx.DB
	users *UserService
	totp  *auth.TOTP
	now   func() time.Time
}

// NewMFAService creates a new MFAService.
func NewMFAService(db *sqlx.DB, users *UserService, totp *auth.TOTP) *MFAService {
	return &MFAService{db: db, users: users, totp: totp, now: func() time.Time { return time.Now().UTC() }}
}

// Setup generates a new secret for the user. The factor becomes active only
// after the first successful Verify. An active factor must be disabled with a
// current code before a new one can be enrolled.
func (s *MFAService) Setup(ctx context.Context, userID string) (auth.TOTPEnrollment, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return auth.TOTPEnrollment{}, err
	}
	if user.MFAEnabled {
		return auth.TOTPEnrollment{}, ErrMFAAlreadyEnabled
	}
	enrollment, err := s.totp.Enroll(user.Email)
	if err != nil {
		return auth.TOTPEnrollment{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET mfa_secret = ?, mfa_enabled = 0, mfa_last_step = 0, updated_at = ?
		WHERE id = ? AND mfa_enabled = 0`, enrollment.Secret, s.now(), userID)
	if err != nil {
		return auth.TOTPEnrollment{}, fmt.Errorf("store mfa secret: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.TOTPEnrollment{}, ErrMFAAlreadyEnabled
	}
	return enrollment, nil
}

// Verify checks code against the stored secret and activates the factor.
func (s *MFAService) Verify(ctx context.Context, userID, code string) error {
	secret, err := s.secret(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.users.useTOTP(ctx, userID, secret, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidMFA
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET mfa_enabled = 1, updated_at = ? WHERE id = ?`, s.now(), userID)
	return err
}

// Disable removes the factor after checking a current code.
func (s *MFAService) Disable(ctx context.Context, userID, code string) error {
	secret, err := s.secret(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.users.useTOTP(ctx, userID, secret, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidMFA
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET mfa_secret = NULL, mfa_enabled = 0, updated_at = ? WHERE id = ?`, s.now(), userID)
	return err
}

func (s *MFAService) secret(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.MFASecret == nil || *user.MFASecret == "" {
		return "", ErrMFANotEnabled
	}
	return *user.MFASecret, nil
}
