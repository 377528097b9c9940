package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/media"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// GuidanceHandler handles HTTP requests for guidances and document tracking.
type GuidanceHandler struct {
	service services.GuidanceServiceProvider
	media   media.Store
}

// NewGuidanceHandler creates a new GuidanceHandler.
func NewGuidanceHandler(service services.GuidanceServiceProvider, store media.Store) *GuidanceHandler {
	return &GuidanceHandler{service: service, media: store}
}

// Create handles a multipart guidance with a thumbnail. documents_required
// is a comma separated list.
func (h *GuidanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		badBody(w)
		return
	}
	in := services.GuidanceInput{
		Title:               trimmed(r, "title"),
		Description:         trimmed(r, "description"),
		Category:            trimmed(r, "category"),
		DocumentsRequired:   services.SplitDocuments(r.FormValue("documents_required")),
		CostRequired:        trimmed(r, "cost_required"),
		GovernmentProfileID: trimmed(r, "government_profile"),
	}
	if in.Title == "" || in.Description == "" || in.Category == "" || len(in.DocumentsRequired) == 0 ||
		!hasFile(r.MultipartForm, "thumbnail") {
		writeMessage(w, http.StatusBadRequest, "All fields are required, including the thumbnail.")
		return
	}

	thumbnail, err := media.UploadImage(r.Context(), h.media, "guidances", r.MultipartForm.File["thumbnail"][0])
	if err != nil {
		writeServiceError(w, err, "", "Failed to upload thumbnail")
		return
	}
	in.Thumbnail = thumbnail

	g, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, "Guidance not found.", "Failed to create guidance")
		return
	}
	audit.SetEntityID(r.Context(), g.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Guidance created successfully", "data": g})
}

// List returns guidances filtered by category and title search.
func (h *GuidanceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	guidances, err := h.service.List(r.Context(), services.GuidanceFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		serverError(w, err, "Failed to list guidances")
		return
	}
	writeJSON(w, http.StatusOK, guidances)
}

// Get returns a guidance with its government profile and, for a signed-in
// caller, their document checklist.
func (h *GuidanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), claims(r).UserID)
	if err != nil {
		writeServiceError(w, err, "Guidance not found.", "Failed to get guidance")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Update applies a partial update. Accepts JSON or a multipart form with an
// optional new thumbnail.
func (h *GuidanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch services.GuidancePatch
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			badBody(w)
			return
		}
		patch = services.GuidancePatch{
			Title:               formField(r, "title"),
			Description:         formField(r, "description"),
			Category:            formField(r, "category"),
			CostRequired:        formField(r, "cost_required"),
			GovernmentProfileID: formField(r, "government_profile"),
		}
		if docs := formField(r, "documents_required"); docs != nil {
			patch.DocumentsRequired = services.SplitDocuments(*docs)
		}
		if hasFile(r.MultipartForm, "thumbnail") {
			url, err := media.UploadImage(r.Context(), h.media, "guidances", r.MultipartForm.File["thumbnail"][0])
			if err != nil {
				writeServiceError(w, err, "", "Failed to upload thumbnail")
				return
			}
			patch.Thumbnail = &url
		}
	} else {
		var payload struct {
			Title               *string `json:"title"`
			Description         *string `json:"description"`
			Category            *string `json:"category"`
			DocumentsRequired   *string `json:"documents_required"`
			CostRequired        *string `json:"cost_required"`
			GovernmentProfileID *string `json:"government_profile"`
		}
		if err := decodeJSON(r, &payload); err != nil {
			badBody(w)
			return
		}
		patch = services.GuidancePatch{
			Title:               payload.Title,
			Description:         payload.Description,
			Category:            payload.Category,
			CostRequired:        payload.CostRequired,
			GovernmentProfileID: payload.GovernmentProfileID,
		}
		if payload.DocumentsRequired != nil {
			patch.DocumentsRequired = services.SplitDocuments(*payload.DocumentsRequired)
		}
	}

	g, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if errors.Is(err, services.ErrNothingToUpdate) {
		writeMessage(w, http.StatusBadRequest, "Nothing to update")
		return
	}
	if err != nil {
		writeServiceError(w, err, "Guidance not found.", "Failed to update guidance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Guidance updated successfully", "data": g})
}

// Delete removes a guidance.
func (h *GuidanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "Guidance not found.", "Failed to delete guidance")
		return
	}
	writeMessage(w, http.StatusOK, "Guidance deleted successfully")
}

// Track sets one checkbox of the caller's document checklist.
func (h *GuidanceHandler) Track(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Document  string `json:"document"`
		IsChecked bool   `json:"isChecked"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	err := h.service.Track(r.Context(), chi.URLParam(r, "id"), claims(r).UserID, payload.Document, payload.IsChecked)
	if errors.Is(err, services.ErrDocumentNotFound) {
		writeMessage(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		writeServiceError(w, err, "Guidance not found.", "Failed to update document tracking")
		return
	}
	writeMessage(w, http.StatusOK, "Document tracking updated")
}
