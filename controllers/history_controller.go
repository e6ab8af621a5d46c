package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blogem/planning-tools/services"
)

// HistoryController serves the journal endpoints for one subject type. The
// event and release history routes are two instances of it.
type HistoryController[T any] struct {
	history *services.HistoryService[T]
}

// NewHistoryController creates a history controller over the given engine
func NewHistoryController[T any](history *services.HistoryService[T]) *HistoryController[T] {
	return &HistoryController[T]{history: history}
}

// List handles GET /api/{subject}/history
func (hc *HistoryController[T]) List(w http.ResponseWriter, r *http.Request) {
	entries, err := hc.history.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Rollback handles POST /api/{subject}/history/{id}/rollback
func (hc *HistoryController[T]) Rollback(w http.ResponseWriter, r *http.Request) {
	result, err := hc.history.Rollback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":   "Rollback successful",
		"subjectId": result.SubjectID,
		"subject":   result.Subject,
	})
}

// Clear handles DELETE /api/{subject}/history
func (hc *HistoryController[T]) Clear(w http.ResponseWriter, r *http.Request) {
	if err := hc.history.Clear(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
