package models

import "time"

// User represents an account on the platform. Credential state lives on the
// same record and is never serialised to clients.
type User struct {
	ID        string `json:"_id" db:"id"`
	FirstName string `json:"fname" db:"fname"`
	LastName  string `json:"lname" db:"lname"`
	Email     string `json:"email" db:"email"`
	Bio       string `json:"bio" db:"bio"`
	Image     string `json:"image" db:"image"`
	Cover     string `json:"cover" db:"cover"`
	IsAdmin   bool   `json:"isAdmin" db:"is_admin"`
	Verified  bool   `json:"isVerified" db:"is_verified"`

	PasswordHash        string     `json:"-" db:"password_hash"` // Never expose this to the client
	OTP                 *string    `json:"-" db:"otp"`
	OTPExpiresAt        *time.Time `json:"-" db:"otp_expires_at"`
	ResetToken          *string    `json:"-" db:"reset_token"`
	ResetTokenExpiry    *time.Time `json:"-" db:"reset_token_expiry"`
	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LockUntil           *time.Time `json:"-" db:"lock_until"`
	PasswordChangedAt   time.Time  `json:"-" db:"password_changed_at"`
	PasswordHistory     StringList `json:"-" db:"password_history_json"`
	MFASecret           *string    `json:"-" db:"mfa_secret"`
	MFAEnabled          bool       `json:"mfaEnabled" db:"mfa_enabled"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Profile is the self-view returned by GET /api/users/profile.
type Profile struct {
	ID         string `json:"_id"`
	FirstName  string `json:"fname"`
	LastName   string `json:"lname"`
	Email      string `json:"email"`
	Bio        string `json:"bio"`
	Image      string `json:"image"`
	Cover      string `json:"cover"`
	IsAdmin    bool   `json:"isAdmin"`
	MFAEnabled bool   `json:"mfaEnabled"`
}

// PublicProfile is what other users may see.
type PublicProfile struct {
	ID        string `json:"_id"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Cover     string `json:"cover"`
}

// Profile returns the owner's view of the user.
func (u User) Profile() Profile {
	return Profile{
		ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email,
		Bio: u.Bio, Image: u.Image, Cover: u.Cover, IsAdmin: u.IsAdmin, MFAEnabled: u.MFAEnabled,
	}
}

// Public returns the fields safe to show to anyone.
func (u User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Bio: u.Bio, Image: u.Image, Cover: u.Cover}
}

// Locked reports whether the account is locked at the given instant.
func (u User) Locked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// Author is the denormalised user summary attached to posts and comments.
type Author struct {
	ID        string `json:"_id"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Image     string `json:"image"`
}
