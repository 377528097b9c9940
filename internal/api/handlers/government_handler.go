package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/media"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// GovernmentHandler handles HTTP requests for government profiles.
type GovernmentHandler struct {
	service services.GovernmentServiceProvider
	media   media.Store
}

// NewGovernmentHandler creates a new GovernmentHandler.
func NewGovernmentHandler(service services.GovernmentServiceProvider, store media.Store) *GovernmentHandler {
	return &GovernmentHandler{service: service, media: store}
}

type profilePayload struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Address     *string  `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Contact     *string  `json:"contact"`
	Website     *string  `json:"website"`
}

func profileFromForm(r *http.Request) (profilePayload, error) {
	p := profilePayload{
		Name:        formField(r, "name"),
		Description: formField(r, "description"),
		Address:     formField(r, "address"),
		Contact:     formField(r, "contact"),
		Website:     formField(r, "website"),
	}
	var err error
	if p.Latitude, err = formFloat(r, "latitude"); err != nil {
		return p, err
	}
	p.Longitude, err = formFloat(r, "longitude")
	return p, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *GovernmentHandler) uploadThumbnail(r *http.Request) (string, error) {
	files := r.MultipartForm.File["thumbnail"]
	if len(files) == 0 {
		return "", nil
	}
	return media.UploadImage(r.Context(), h.media, "government", files[0])
}

// Create handles a multipart government profile with a thumbnail.
func (h *GovernmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		badBody(w)
		return
	}
	p, err := profileFromForm(r)
	if err != nil {
		writeServiceError(w, err, "", "Failed to read government profile")
		return
	}
	if deref(p.Name) == "" || deref(p.Description) == "" || deref(p.Address) == "" ||
		p.Latitude == nil || p.Longitude == nil || !hasFile(r.MultipartForm, "thumbnail") {
		writeMessage(w, http.StatusBadRequest, "All fields are required, including a thumbnail.")
		return
	}

	thumbnail, err := h.uploadThumbnail(r)
	if err != nil {
		writeServiceError(w, err, "", "Failed to upload thumbnail")
		return
	}

	profile, err := h.service.Create(r.Context(), services.ProfileInput{
		Name:        deref(p.Name),
		Description: deref(p.Description),
		Address:     deref(p.Address),
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Thumbnail:   thumbnail,
		Contact:     deref(p.Contact),
		Website:     deref(p.Website),
	})
	if err != nil {
		writeServiceError(w, err, "Government profile not found", "Failed to create government profile")
		return
	}
	audit.SetEntityID(r.Context(), profile.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Government profile created successfully", "data": profile})
}

// List returns every profile with its branches.
func (h *GovernmentHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context())
	if err != nil {
		serverError(w, err, "Failed to list government profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// Get handles retrieving a profile by its ID.
func (h *GovernmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Government profile not found", "Failed to get government profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update applies a partial update. Accepts JSON or a multipart form with an
// optional new thumbnail.
func (h *GovernmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p profilePayload
	var thumbnail *string
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			badBody(w)
			return
		}
		var err error
		if p, err = profileFromForm(r); err != nil {
			writeServiceError(w, err, "", "Failed to read government profile")
			return
		}
		url, err := h.uploadThumbnail(r)
		if err != nil {
			writeServiceError(w, err, "", "Failed to upload thumbnail")
			return
		}
		if url != "" {
			thumbnail = &url
		}
	} else if err := decodeJSON(r, &p); err != nil {
		badBody(w)
		return
	}

	profile, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), services.ProfilePatch{
		Name:        p.Name,
		Description: p.Description,
		Address:     p.Address,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Thumbnail:   thumbnail,
		Contact:     p.Contact,
		Website:     p.Website,
	})
	if errors.Is(err, services.ErrNothingToUpdate) {
		writeMessage(w, http.StatusBadRequest, "Nothing to update")
		return
	}
	if err != nil {
		writeServiceError(w, err, "Government profile not found", "Failed to update government profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Government profile updated successfully", "data": profile})
}

// Delete removes a profile and its branches.
func (h *GovernmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "Government profile not found", "Failed to delete government profile")
		return
	}
	writeMessage(w, http.StatusOK, "Government profile deleted successfully")
}

// AddBranch attaches a branch location to a profile.
func (h *GovernmentHandler) AddBranch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name      string   `json:"name"`
		Address   string   `json:"address"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	profile, err := h.service.AddBranch(r.Context(), chi.URLParam(r, "id"), services.BranchInput{
		Name:      payload.Name,
		Address:   payload.Address,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
	})
	if err != nil {
		writeServiceError(w, err, "Government profile not found", "Failed to add branch")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Branch added successfully", "data": profile})
}

// Nearest returns the profiles with a location within the configured radius.
func (h *GovernmentHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	lat, okLat := queryFloat(r, "latitude")
	lng, okLng := queryFloat(r, "longitude")
	if !okLat || !okLng {
		writeMessage(w, http.StatusBadRequest, "Valid latitude and longitude are required")
		return
	}
	profiles, err := h.service.Nearest(r.Context(), lat, lng)
	if err != nil {
		writeServiceError(w, err, "Government profile not found", "Failed to find nearest government profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// Follow subscribes the caller to a profile.
func (h *GovernmentHandler) Follow(w http.ResponseWriter, r *http.Request) {
	err := h.service.Follow(r.Context(), chi.URLParam(r, "id"), claims(r).UserID)
	if errors.Is(err, services.ErrAlreadyFollowing) {
		writeMessage(w, http.StatusBadRequest, "You are already following this profile")
		return
	}
	if err != nil {
		writeServiceError(w, err, "Government profile not found", "Failed to follow government profile")
		return
	}
	writeMessage(w, http.StatusOK, "Profile followed successfully")
}

// Unfollow removes the caller's subscription.
func (h *GovernmentHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unfollow(r.Context(), chi.URLParam(r, "id"), claims(r).UserID); err != nil {
		writeServiceError(w, err, "You are not following this profile", "Failed to unfollow government profile")
		return
	}
	writeMessage(w, http.StatusOK, "Profile unfollowed successfully")
}

// Following lists the profiles the caller follows.
func (h *GovernmentHandler) Following(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.Following(r.Context(), claims(r).UserID)
	if err != nil {
		serverError(w, err, "Failed to list followed profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func hasFile(form *multipart.Form, key string) bool {
	return form != nil && len(form.File[key]) > 0
}
