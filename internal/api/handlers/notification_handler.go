package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// NotificationHandler handles HTTP requests for notifications.
type NotificationHandler struct {
	service services.NotificationServiceProvider
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service services.NotificationServiceProvider) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.service.ListForUser(r.Context(), claims(r).UserID)
	if err != nil {
		serverError(w, err, "Failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// Create sends a notification to one user, or to every user when userId is empty.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		UserID      string `json:"userId"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}

	if userID := strings.TrimSpace(payload.UserID); userID != "" {
		n, err := h.service.Notify(r.Context(), userID, payload.Title, payload.Description)
		if err != nil {
			writeServiceError(w, err, "User not found", "Failed to create notification")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Notification sent", "data": n})
		return
	}

	count, err := h.service.Broadcast(r.Context(), payload.Title, payload.Description)
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to broadcast notification")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Notification sent to all users", "count": count})
}

// MarkRead flags one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkRead(r.Context(), claims(r).UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "Notification not found", "Failed to mark notification read")
		return
	}
	writeMessage(w, http.StatusOK, "Notification marked as read")
}
