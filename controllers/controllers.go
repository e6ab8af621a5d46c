package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/blogem/planning-tools/models"
	"github.com/blogem/planning-tools/repositories"
	"github.com/blogem/planning-tools/services"
)

// Controllers holds all controller instances
type Controllers struct {
	Auth           *AuthController
	Events         *EventController
	Releases       *ReleaseController
	EventHistory   *HistoryController[models.Event]
	ReleaseHistory *HistoryController[models.Release]
}

// NewControllers creates and initializes all controller instances
func NewControllers(services *services.Services, users repositories.UserRepository) *Controllers {
	return &Controllers{
		Auth:           NewAuthController(users),
		Events:         NewEventController(services),
		Releases:       NewReleaseController(services),
		EventHistory:   NewHistoryController(services.Events.History()),
		ReleaseHistory: NewHistoryController(services.Releases.History()),
	}
}

// respondJSON writes the payload as a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// respondError maps a service error onto an HTTP status and a JSON error
// body. Unmapped errors become opaque 500s so internals never leak.
func respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidEntry):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, models.ErrCorruptHistory):
		status = http.StatusConflict
		message = "History entry is corrupt and cannot be rolled back"
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
		log.Printf("internal error: %v", err)
	}

	respondJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"status":  status,
		},
	})
}

// decodeBody parses a JSON request body into dst
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.ErrInvalidInput
	}
	return nil
}
