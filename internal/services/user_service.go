package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/auth"
	"github.com/sajilotantra/sajilotantra-be/internal/email"
	"github.com/sajilotantra/sajilotantra-be/internal/metrics"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// AuthSettings holds the account-security policy.
type AuthSettings struct {
	OTPTTL          time.Duration
	ResetTokenTTL   time.Duration
	MaxAttempts     int
	LockDuration    time.Duration
	PasswordMaxAge  time.Duration
	PasswordHistory int
	FrontendURL     string
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Bio       string
	Image     string
}

// LoginInput carries credentials and an optional second-factor code.
type LoginInput struct {
	Email    string
	Password string
	MFACode  string
}

// LoginResult is returned after a successful authentication.
type LoginResult struct {
	Token string
	User  models.User
}

// ProfileUpdate lists the profile fields a user may change. Empty values are left as they are.
type ProfileUpdate struct {
	Bio   *string
	Image string
	Cover string
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CheckRegistration(ctx context.Context, in RegisterInput) error
	Register(ctx context.Context, in RegisterInput) (models.User, error)
	VerifyOTP(ctx context.Context, email, otp string) (LoginResult, error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, in LoginInput) (LoginResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error
	GetUserByID(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (models.User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	DeleteUser(ctx context.Context, id string) error
}

// UserService provides business logic for accounts and authentication.
type UserService struct {
	db       *sqlx.DB
	mailer   email.Mailer
	tokens   *auth.TokenIssuer
	totp     *auth.TOTP
	metrics  *metrics.Metrics
	settings AuthSettings
	now      func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(db *sqlx.DB, mailer email.Mailer, tokens *auth.TokenIssuer, totp *auth.TOTP, m *metrics.Metrics, settings AuthSettings) *UserService {
	return &UserService{
		db:       db,
		mailer:   mailer,
		tokens:   tokens,
		totp:     totp,
		metrics:  m,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

const userColumns = `id, fname, lname, email, password_hash, bio, image, cover, is_admin, is_verified,
	otp, otp_expires_at, reset_token, reset_token_expiry, failed_login_attempts, lock_until,
	password_changed_at, password_history_json, mfa_secret, mfa_enabled, created_at, updated_at`

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// CheckRegistration runs the checks Register applies before anything is
// stored, so callers can reject a sign-up before uploading its files.
func (s *UserService) CheckRegistration(ctx context.Context, in RegisterInput) error {
	_, err := s.checkRegistration(ctx, in)
	return err
}

func (s *UserService) checkRegistration(ctx context.Context, in RegisterInput) (RegisterInput, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = normalizeEmail(in.Email)
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return in, Invalid("All fields are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return in, Invalid("Invalid email address")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return in, err
	}

	if _, err := s.GetUserByEmail(ctx, in.Email); err == nil {
		return in, ErrUserExists
	} else if !errors.Is(err, ErrNotFound) {
		return in, err
	}
	return in, nil
}

// Register creates an unverified account and emails its OTP.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in, err := s.checkRegistration(ctx, in)
	if err != nil {
		return models.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	otp, err := auth.GenerateOTP()
	if err != nil {
		return models.User{}, err
	}

	now := s.now()
	expires := now.Add(s.settings.OTPTTL)
	user := models.User{
		ID:                uuid.New().String(),
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Email:             in.Email,
		Bio:               strings.TrimSpace(in.Bio),
		Image:             in.Image,
		PasswordHash:      hash,
		OTP:               &otp,
		OTPExpiresAt:      &expires,
		PasswordChangedAt: now,
		PasswordHistory:   models.StringList{hash},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, fname, lname, email, password_hash, bio, image, cover, otp, otp_expires_at,
			password_changed_at, password_history_json, created_at, updated_at)
		VALUES (:id, :fname, :lname, :email, :password_hash, :bio, :image, :cover, :otp, :otp_expires_at,
			:password_changed_at, :password_history_json, :created_at, :updated_at)`, &user)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	if err := s.sendOTP(ctx, user, otp); err != nil {
		// Without the code the account could never be verified; let the user register again.
		if _, derr := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, user.ID); derr != nil {
			log.Error().Err(derr).Str("user_id", user.ID).Msg("Failed to roll back registration")
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) sendOTP(ctx context.Context, user models.User, otp string) error {
	msg, err := email.OTPMessage(user.Email, user.FirstName, otp, s.settings.OTPTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

// VerifyOTP marks the account verified when code matches the pending OTP.
func (s *UserService) VerifyOTP(ctx context.Context, emailAddr, code string) (LoginResult, error) {
	user, err := s.GetUserByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return LoginResult{}, err
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if user.OTP == nil || user.OTPExpiresAt == nil || !auth.EqualCodes(*user.OTP, code) || !s.now().Before(*user.OTPExpiresAt) {
		return LoginResult{}, ErrInvalidOTP
	}

	// Conditional on the code so that a concurrent verification cannot reuse it.
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET otp = NULL, otp_expires_at = NULL, is_verified = 1, updated_at = ?
		WHERE id = ? AND otp = ?`, s.now(), user.ID, *user.OTP)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify user: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return LoginResult{}, ErrInvalidOTP
	}
	user.Verified = true
	user.OTP, user.OTPExpiresAt = nil, nil

	token, err := s.tokens.Generate(user.ID, user.IsAdmin)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: user}, nil
}

// ResendOTP issues a fresh code to an unverified account.
func (s *UserService) ResendOTP(ctx context.Context, emailAddr string) error {
	user, err := s.GetUserByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}
	otp, err := auth.GenerateOTP()
	if err != nil {
		return err
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET otp = ?, otp_expires_at = ?, updated_at = ? WHERE id = ?`,
		otp, now.Add(s.settings.OTPTTL), now, user.ID); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return s.sendOTP(ctx, user, otp)
}

// Login authenticates a user. Checks run in order: lock, password age,
// password, verification, second factor.
func (s *UserService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	user, err := s.GetUserByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, ErrNotFound) {
		s.metrics.LoginAttempt("unknown_user")
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}

	now := s.now()
	if user.Locked(now) {
		s.metrics.LoginAttempt("locked")
		return LoginResult{}, &LockedError{Remaining: user.LockUntil.Sub(now)}
	}
	if s.settings.PasswordMaxAge > 0 && now.Sub(user.PasswordChangedAt) > s.settings.PasswordMaxAge {
		s.metrics.LoginAttempt("password_expired")
		return LoginResult{}, ErrPasswordExpired
	}
	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		s.metrics.LoginAttempt("bad_password")
		return LoginResult{}, s.registerFailure(ctx, user.ID, ErrInvalidCredentials)
	}
	if !user.Verified {
		s.metrics.LoginAttempt("unverified")
		return LoginResult{}, ErrNotVerified
	}
	if user.MFAEnabled && user.MFASecret != nil {
		if strings.TrimSpace(in.MFACode) == "" {
			s.metrics.LoginAttempt("mfa_required")
			return LoginResult{}, ErrMFARequired
		}
		ok, err := s.useTOTP(ctx, user.ID, *user.MFASecret, in.MFACode)
		if err != nil {
			return LoginResult{}, err
		}
		if !ok {
			s.metrics.LoginAttempt("bad_mfa")
			return LoginResult{}, s.registerFailure(ctx, user.ID, ErrInvalidMFA)
		}
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET failed_login_attempts = 0, lock_until = NULL, updated_at = ? WHERE id = ?`, now, user.ID); err != nil {
		return LoginResult{}, fmt.Errorf("reset login attempts: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LockUntil = nil

	token, err := s.tokens.Generate(user.ID, user.IsAdmin)
	if err != nil {
		return LoginResult{}, err
	}
	s.metrics.LoginAttempt("success")
	return LoginResult{Token: token, User: user}, nil
}

// useTOTP accepts a code at most once. A code whose time step is not newer
// than the last accepted one is rejected, so a code cannot be replayed inside
// its skew window.
func (s *UserService) useTOTP(ctx context.Context, userID, secret, code string) (bool, error) {
	step, ok := s.totp.Match(secret, strings.TrimSpace(code))
	if !ok {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET mfa_last_step = ? WHERE id = ? AND mfa_last_step < ?`,
		step, userID, step)
	if err != nil {
		return false, fmt.Errorf("record mfa step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// registerFailure increments the failure counter atomically and locks the
// account once the threshold is reached. It returns cause, or a *LockedError.
func (s *UserService) registerFailure(ctx context.Context, userID string, cause error) error {
	now := s.now()
	var attempts int
	err := s.db.GetContext(ctx, &attempts, `
		UPDATE users SET failed_login_attempts = failed_login_attempts + 1, updated_at = ?
		WHERE id = ? RETURNING failed_login_attempts`, now, userID)
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	if attempts < s.settings.MaxAttempts {
		return cause
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET lock_until = ? WHERE id = ?`, now.Add(s.settings.LockDuration), userID); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	log.Warn().Str("user_id", userID).Int("attempts", attempts).Msg("Account locked after repeated failed logins")
	return &LockedError{Remaining: s.settings.LockDuration, JustLocked: true}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestPasswordReset stores a reset token and emails a link to redeem it.
func (s *UserService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := s.GetUserByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return err
	}
	token, err := auth.GenerateResetToken()
	if err != nil {
		return err
	}
	now := s.now()
	// Only a digest is stored; the raw token exists solely in the email.
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET reset_token = ?, reset_token_expiry = ?, updated_at = ? WHERE id = ?`,
		hashToken(token), now.Add(s.settings.ResetTokenTTL), now, user.ID); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := s.settings.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
	msg, err := email.PasswordResetMessage(user.Email, link, s.settings.ResetTokenTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword redeems a reset token. A token can be redeemed once.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidResetToken
	}
	digest := hashToken(token)

	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE reset_token = ?`, digest)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("find reset token: %w", err)
	}
	if user.ResetTokenExpiry == nil || !s.now().Before(*user.ResetTokenExpiry) {
		return ErrInvalidResetToken
	}

	hash, history, err := s.nextPassword(user, newPassword)
	if err != nil {
		return err
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, password_history_json = ?, password_changed_at = ?,
			reset_token = NULL, reset_token_expiry = NULL, updated_at = ?
		WHERE id = ? AND reset_token = ?`, hash, history, now, now, user.ID, digest)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrInvalidResetToken
	}
	return nil
}

// ChangePassword replaces the password of an account whose current password
// is known. It is allowed while the password is expired.
func (s *UserService) ChangePassword(ctx context.Context, emailAddr, currentPassword, newPassword string) error {
	user, err := s.GetUserByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	now := s.now()
	if user.Locked(now) {
		return &LockedError{Remaining: user.LockUntil.Sub(now)}
	}
	if !auth.CheckPassword(user.PasswordHash, currentPassword) {
		return s.registerFailure(ctx, user.ID, ErrInvalidCredentials)
	}

	hash, history, err := s.nextPassword(user, newPassword)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, password_history_json = ?, password_changed_at = ?, updated_at = ?
		WHERE id = ?`, hash, history, now, now, user.ID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// nextPassword validates newPassword against the policy and history and
// returns its hash and the updated history.
func (s *UserService) nextPassword(user models.User, newPassword string) (string, models.StringList, error) {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return "", nil, err
	}
	previous := append([]string{user.PasswordHash}, user.PasswordHistory...)
	if err := auth.CheckHistory(previous, newPassword); err != nil {
		return "", nil, err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return "", nil, err
	}
	return hash, models.StringList(auth.PushHistory(user.PasswordHistory, hash, s.settings.PasswordHistory)), nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user, err
}

// GetUserByEmail retrieves a single user by email, including credential state.
func (s *UserService) GetUserByEmail(ctx context.Context, emailAddr string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = ?`, emailAddr)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", emailAddr, ErrNotFound)
	}
	return user, err
}

// ListUsers returns every account, newest first.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	return users, err
}

// UpdateProfile changes bio and images of a user.
func (s *UserService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (models.User, error) {
	sets := []string{}
	args := []interface{}{}
	if upd.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, strings.TrimSpace(*upd.Bio))
	}
	if upd.Image != "" {
		sets = append(sets, "image = ?")
		args = append(args, upd.Image)
	}
	if upd.Cover != "" {
		sets = append(sets, "cover = ?")
		args = append(args, upd.Cover)
	}
	if len(sets) == 0 {
		return models.User{}, ErrNothingToUpdate
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)

	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

// SetAdmin grants or revokes administrative rights.
func (s *UserService) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`, isAdmin, s.now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PromoteByEmail grants administrative rights to the account with the given email.
func (s *UserService) PromoteByEmail(ctx context.Context, emailAddr string) error {
	user, err := s.GetUserByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return err
	}
	return s.SetAdmin(ctx, user.ID, true)
}

// DeleteUser removes a user and, through cascading keys, everything they own.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
