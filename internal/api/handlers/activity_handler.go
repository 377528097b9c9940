package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// ActivityHandler exposes the activity log.
type ActivityHandler struct {
	service services.ActivityServiceProvider
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(service services.ActivityServiceProvider) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List returns activity logs matching the query filters. Admin only.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ActivityFilter{
		UserID:     q.Get("userId"),
		Action:     models.Action(q.Get("action")),
		EntityType: models.EntityType(q.Get("entityType")),
		Page:       queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", 0),
	}
	var err error
	if filter.StartDate, err = parseDate(q.Get("startDate"), false); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid startDate")
		return
	}
	if filter.EndDate, err = parseDate(q.Get("endDate"), true); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid endDate")
		return
	}

	logs, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "Activity log not found", "Failed to list activity logs")
		return
	}
	writeLogs(w, logs, page)
}

// Create records a log entry submitted by a client.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Action     models.Action          `json:"action"`
		EntityType models.EntityType      `json:"entityType"`
		EntityID   string                 `json:"entityId"`
		Status     models.ActivityStatus  `json:"status"`
		Metadata   map[string]interface{} `json:"metadata"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}

	entry, err := h.service.CreateLog(r.Context(), services.ActivityInput{
		UserID:     claims(r).UserID,
		Action:     payload.Action,
		EntityType: payload.EntityType,
		EntityID:   payload.EntityID,
		Status:     payload.Status,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Metadata:   payload.Metadata,
	})
	if err != nil {
		writeServiceError(w, err, "Activity log not found", "Failed to create activity log")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"status": "success", "data": map[string]interface{}{"log": entry}})
}

// Stats returns per action and entity totals. Admin only.
func (h *ActivityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		serverError(w, err, "Failed to compute activity stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": map[string]interface{}{"stats": stats}})
}

// parseDate accepts RFC 3339 or a bare date. A bare end date covers the
// whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
