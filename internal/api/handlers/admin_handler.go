package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sajilotantra/sajilotantra-be/internal/admin"
)

// AdminHandler serves the admin resource console.
type AdminHandler struct {
	registry *admin.Registry
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(registry *admin.Registry) *AdminHandler {
	return &AdminHandler{registry: registry}
}

// Resources lists the browsable resources and their columns.
func (h *AdminHandler) Resources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Resources())
}

// List returns one page of a resource.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.registry.List(r.Context(), chi.URLParam(r, "name"), queryInt(r, "page", 1), queryInt(r, "perPage", 0))
	if err != nil {
		h.writeError(w, err, "Failed to list resource")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get returns one record.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.registry.Get(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "Failed to get record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Create adds a record from a JSON object of field values.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var values map[string]interface{}
	if err := decodeJSON(r, &values); err != nil {
		badBody(w)
		return
	}
	rec, err := h.registry.Create(r.Context(), chi.URLParam(r, "name"), values)
	if err != nil {
		h.writeError(w, err, "Failed to create record")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Update edits the fields given in a JSON object.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var values map[string]interface{}
	if err := decodeJSON(r, &values); err != nil {
		badBody(w)
		return
	}
	rec, err := h.registry.Update(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id"), values)
	if err != nil {
		h.writeError(w, err, "Failed to update record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete removes one record.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err, "Failed to delete record")
		return
	}
	writeMessage(w, http.StatusOK, "Record deleted successfully")
}

// Dashboard returns record counts per resource.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.registry.Dashboard(r.Context())
	if err != nil {
		serverError(w, err, "Failed to build admin dashboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}

func (h *AdminHandler) writeError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, admin.ErrUnknownResource):
		writeMessage(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, admin.ErrRecordNotFound):
		writeMessage(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, admin.ErrInvalidRecord):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, admin.ErrReadOnly):
		writeMessage(w, http.StatusMethodNotAllowed, "This resource cannot be changed from the console")
	default:
		serverError(w, err, logMsg)
	}
}
