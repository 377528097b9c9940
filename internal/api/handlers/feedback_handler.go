package handlers

import (
	"net/http"

	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/media"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// FeedbackHandler handles HTTP requests for user feedback.
type FeedbackHandler struct {
	service services.FeedbackServiceProvider
	media   media.Store
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(service services.FeedbackServiceProvider, store media.Store) *FeedbackHandler {
	return &FeedbackHandler{service: service, media: store}
}

// Submit stores feedback. Accepts JSON or a multipart form with image files.
// The caller is optional.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	in := services.FeedbackInput{UserID: claims(r).UserID}
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			badBody(w)
			return
		}
		in.Category = trimmed(r, "category")
		in.Suggestion = trimmed(r, "suggestion")
		in.Feedback = trimmed(r, "feedback")
		if in.Category == "" || in.Feedback == "" {
			writeMessage(w, http.StatusBadRequest, "Category and feedback are required")
			return
		}
		files, err := media.UploadImages(r.Context(), h.media, "feedbacks", r.MultipartForm.File["files"])
		if err != nil {
			writeServiceError(w, err, "", "Failed to upload feedback files")
			return
		}
		in.Files = files
	} else {
		var payload struct {
			Category   string `json:"category"`
			Suggestion string `json:"suggestion"`
			Feedback   string `json:"feedback"`
		}
		if err := decodeJSON(r, &payload); err != nil {
			badBody(w)
			return
		}
		in.Category, in.Suggestion, in.Feedback = payload.Category, payload.Suggestion, payload.Feedback
	}

	fb, err := h.service.Submit(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, "Feedback not found", "Failed to submit feedback")
		return
	}
	audit.SetEntityID(r.Context(), fb.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Feedback submitted successfully", "data": fb})
}

// List returns all feedback, newest first.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	feedbacks, err := h.service.List(r.Context())
	if err != nil {
		serverError(w, err, "Failed to list feedback")
		return
	}
	writeJSON(w, http.StatusOK, feedbacks)
}
