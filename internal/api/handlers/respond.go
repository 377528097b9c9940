package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/auth"
	"github.com/sajilotantra/sajilotantra-be/internal/media"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

const (
	maxJSONBody     = 1 << 20
	maxMultipartMem = 32 << 20
)

var errEmptyBody = errors.New("empty request body")

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartMem+media.MaxImageSize*6)
	return r.ParseMultipartForm(maxMultipartMem)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func queryFloat(r *http.Request, key string) (float64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

// claims returns the authenticated caller, or empty claims on routes where
// a token is optional.
func claims(r *http.Request) *auth.Claims {
	c, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return &auth.Claims{}
	}
	return c
}

func serverError(w http.ResponseWriter, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	writeMessage(w, http.StatusInternalServerError, "Server error")
}

// writeServiceError maps the errors shared by every service to a response.
// notFound is the message used for services.ErrNotFound.
func writeServiceError(w http.ResponseWriter, err error, notFound, logMsg string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, services.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, auth.ErrWeakPassword):
		writeMessage(w, http.StatusBadRequest, auth.PasswordPolicy)
	case errors.Is(err, auth.ErrPasswordReused):
		writeMessage(w, http.StatusBadRequest, "You cannot reuse one of your recent passwords.")
	case errors.Is(err, media.ErrUnsupportedType):
		writeMessage(w, http.StatusBadRequest, "Only .png, .jpg and .jpeg format allowed!")
	case errors.Is(err, media.ErrTooLarge):
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size is %dMB.", media.MaxImageSize>>20))
	default:
		serverError(w, err, logMsg)
	}
}

func badBody(w http.ResponseWriter) {
	writeMessage(w, http.StatusBadRequest, "Invalid request body")
}

func trimmed(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// formField returns a multipart field, or nil when the form does not carry it.
func formField(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	vals, ok := r.MultipartForm.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := strings.TrimSpace(vals[0])
	return &v
}

// formFloat parses an optional numeric multipart field.
func formFloat(r *http.Request, key string) (*float64, error) {
	raw := formField(r, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(*raw, 64)
	if err != nil {
		return nil, services.Invalid("Invalid %s", key)
	}
	return &v, nil
}
