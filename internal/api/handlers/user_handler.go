package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/media"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// UserHandler handles HTTP requests for accounts and authentication.
type UserHandler struct {
	service       services.UserServiceProvider
	activity      services.ActivityServiceProvider
	media         media.Store
	tokenTTL      time.Duration
	secureCookies bool
}

// NewUserHandler creates a new UserHandler. secureCookies sets the Secure
// flag on the session cookie.
func NewUserHandler(service services.UserServiceProvider, activity services.ActivityServiceProvider, store media.Store, tokenTTL time.Duration, secureCookies bool) *UserHandler {
	return &UserHandler{service: service, activity: activity, media: store, tokenTTL: tokenTTL, secureCookies: secureCookies}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Bio       string `json:"bio"`
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFAToken string `json:"mfaToken"`
}

// Register handles new user registration. Accepts JSON or a multipart form
// with an optional profileImage.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			badBody(w)
			return
		}
		payload = RegisterPayload{
			FirstName: r.FormValue("fname"),
			LastName:  r.FormValue("lname"),
			Email:     r.FormValue("email"),
			Password:  r.FormValue("password"),
			Bio:       r.FormValue("bio"),
		}
	} else if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	in := services.RegisterInput{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
		Bio:       payload.Bio,
	}

	// Reject the sign-up before its image is uploaded.
	if err := h.service.CheckRegistration(r.Context(), in); err != nil {
		h.writeRegisterError(w, err)
		return
	}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["profileImage"]; len(files) > 0 {
			url, err := media.UploadImage(r.Context(), h.media, "profiles", files[0])
			if err != nil {
				writeServiceError(w, err, "", "Failed to upload profile image")
				return
			}
			in.Image = url
		}
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.writeRegisterError(w, err)
		return
	}

	audit.SetActor(r.Context(), user.ID)
	audit.SetEntityID(r.Context(), user.ID)
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully. Please verify your email using the OTP sent.",
		"userId":  user.ID,
	})
}

func (h *UserHandler) writeRegisterError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrUserExists) {
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	writeServiceError(w, err, "User not found", "Failed to register user")
}

// VerifyOTP confirms the email address of a new account.
func (h *UserHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}

	res, err := h.service.VerifyOTP(r.Context(), payload.Email, payload.OTP)
	if errors.Is(err, services.ErrInvalidOTP) {
		writeMessage(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to verify OTP")
		return
	}

	audit.SetActor(r.Context(), res.User.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account verified successfully", "token": res.Token})
}

// ResendOTP sends a fresh verification code.
func (h *UserHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	err := h.service.ResendOTP(r.Context(), payload.Email)
	if errors.Is(err, services.ErrAlreadyVerified) {
		writeMessage(w, http.StatusBadRequest, "Account already verified")
		return
	}
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to resend OTP")
		return
	}
	writeMessage(w, http.StatusOK, "A new OTP has been sent to your email.")
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}

	res, err := h.service.Login(r.Context(), services.LoginInput{
		Email:    payload.Email,
		Password: payload.Password,
		MFACode:  payload.MFAToken,
	})
	if err != nil {
		h.writeLoginError(w, err, payload.Email)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    res.Token,
		Expires:  time.Now().Add(h.tokenTTL),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	audit.SetActor(r.Context(), res.User.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   res.Token,
		"user": map[string]interface{}{
			"_id":     res.User.ID,
			"email":   res.User.Email,
			"isAdmin": res.User.IsAdmin,
		},
	})
}

func (h *UserHandler) writeLoginError(w http.ResponseWriter, err error, email string) {
	var locked *services.LockedError
	switch {
	case errors.As(err, &locked):
		if locked.JustLocked {
			writeMessage(w, http.StatusForbidden, "Account locked due to too many failed login attempts. Please try again later.")
			return
		}
		writeMessage(w, http.StatusForbidden, fmt.Sprintf("Account is locked. Please try again after %d seconds.", locked.Seconds()))
	case errors.Is(err, services.ErrInvalidCredentials):
		log.Warn().Str("email", email).Msg("Failed authentication attempt")
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrNotVerified):
		writeMessage(w, http.StatusForbidden, "Account not verified. Please verify your email before logging in.")
	case errors.Is(err, services.ErrPasswordExpired):
		writeMessage(w, http.StatusForbidden, "Your password has expired. Please update your password to continue.")
	case errors.Is(err, services.ErrMFARequired):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"mfaRequired": true, "message": "MFA code required"})
	case errors.Is(err, services.ErrInvalidMFA):
		writeMessage(w, http.StatusUnauthorized, "Invalid MFA code")
	default:
		serverError(w, err, "Login failed")
	}
}

// Logout clears the session cookie.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// RequestPasswordReset emails a reset link.
func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		writeServiceError(w, err, "User not found", "Failed to request password reset")
		return
	}
	writeMessage(w, http.StatusOK, "Password reset link sent to your email.")
}

// ResetPassword redeems a reset token.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	err := h.service.ResetPassword(r.Context(), payload.Token, payload.NewPassword)
	if errors.Is(err, services.ErrInvalidResetToken) {
		writeMessage(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to reset password")
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset successfully.")
}

// ChangePassword replaces a known password, including an expired one.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email           string `json:"email"`
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	err := h.service.ChangePassword(r.Context(), payload.Email, payload.CurrentPassword, payload.NewPassword)
	var locked *services.LockedError
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Password changed successfully")
	case errors.As(err, &locked), errors.Is(err, services.ErrInvalidCredentials):
		h.writeLoginError(w, err, payload.Email)
	default:
		writeServiceError(w, err, "User not found", "Failed to change password")
	}
}

// GetProfile returns the caller's own profile.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), claims(r).UserID)
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

// UpdateProfile changes the caller's bio, profile image or cover image.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := claims(r).UserID
	var upd services.ProfileUpdate

	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			badBody(w)
			return
		}
		if _, ok := r.MultipartForm.Value["bio"]; ok {
			bio := r.FormValue("bio")
			upd.Bio = &bio
		}
		for field, dst := range map[string]*string{"profileImage": &upd.Image, "coverImage": &upd.Cover} {
			files := r.MultipartForm.File[field]
			if len(files) == 0 {
				continue
			}
			url, err := media.UploadImage(r.Context(), h.media, "profiles/"+userID, files[0])
			if err != nil {
				writeServiceError(w, err, "", "Failed to upload profile image")
				return
			}
			*dst = url
		}
	} else {
		var payload struct {
			Bio *string `json:"bio"`
		}
		if err := decodeJSON(r, &payload); err != nil && !errors.Is(err, errEmptyBody) {
			badBody(w)
			return
		}
		upd.Bio = payload.Bio
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, upd)
	if errors.Is(err, services.ErrNothingToUpdate) {
		writeMessage(w, http.StatusBadRequest, "Nothing to update")
		return
	}
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Profile updated successfully", "user": user.Profile()})
}

// List returns every account. Admin only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		serverError(w, err, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to get user")
		return
	}
	c := claims(r)
	if c.UserID == id || c.IsAdmin {
		writeJSON(w, http.StatusOK, user)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// PublicProfile returns the fields of a user anyone may see.
func (h *UserHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to get user profile")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// Delete removes an account. Admin only.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "User not found", "Failed to delete user")
		return
	}
	writeMessage(w, http.StatusOK, "User deleted successfully")
}

// MyActivityLogs returns the caller's own activity, newest first.
func (h *UserHandler) MyActivityLogs(w http.ResponseWriter, r *http.Request) {
	logs, page, err := h.activity.ListForUser(r.Context(), claims(r).UserID, queryInt(r, "page", 1), queryInt(r, "limit", 0))
	if err != nil {
		serverError(w, err, "Failed to list activity logs")
		return
	}
	writeLogs(w, logs, page)
}

func writeLogs(w http.ResponseWriter, logs []models.ActivityLog, page models.Pagination) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"results":    len(logs),
		"pagination": page,
		"data":       map[string]interface{}{"logs": logs},
	})
}
