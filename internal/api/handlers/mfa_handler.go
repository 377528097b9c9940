package handlers

import (
	"errors"
	"net/http"

	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// MFAHandler handles authenticator-app enrolment.
type MFAHandler struct {
	service services.MFAServiceProvider
}

// NewMFAHandler creates a new MFAHandler.
func NewMFAHandler(service services.MFAServiceProvider) *MFAHandler {
	return &MFAHandler{service: service}
}

type mfaCodePayload struct {
	Token string `json:"token"`
}

// Setup generates a pending secret and returns it with a QR code.
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.service.Setup(r.Context(), claims(r).UserID)
	if errors.Is(err, services.ErrMFAAlreadyEnabled) {
		writeMessage(w, http.StatusBadRequest, "MFA already enabled; disable it first.")
		return
	}
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to set up MFA")
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

// Verify confirms a code against the pending secret and enables MFA.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var payload mfaCodePayload
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	err := h.service.Verify(r.Context(), claims(r).UserID, payload.Token)
	if h.writeCodeError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "MFA enabled successfully"})
}

// Disable turns MFA off after checking a current code.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	var payload mfaCodePayload
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	err := h.service.Disable(r.Context(), claims(r).UserID, payload.Token)
	if h.writeCodeError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "MFA disabled successfully"})
}

// writeCodeError reports whether err was written to w.
func (h *MFAHandler) writeCodeError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrMFANotEnabled):
		writeMessage(w, http.StatusBadRequest, "MFA not enabled for this user.")
	case errors.Is(err, services.ErrInvalidMFA):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "Invalid MFA code"})
	default:
		writeServiceError(w, err, "User not found", "Failed to verify MFA code")
	}
	return true
}
