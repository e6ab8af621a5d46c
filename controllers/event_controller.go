package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blogem/planning-tools/models"
	"github.com/blogem/planning-tools/repositories"
	"github.com/blogem/planning-tools/services"
)

// EventController handles the calendar event endpoints
type EventController struct {
	services *services.Services
}

// NewEventController creates a new event controller
func NewEventController(services *services.Services) *EventController {
	return &EventController{services: services}
}

// List handles GET /api/events
func (ec *EventController) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.EventFilter{
		Category: query.Get("category"),
		DateFrom: query.Get("date_from"),
		DateTo:   query.Get("date_to"),
		Search:   query.Get("search"),
	}

	events, err := ec.services.Events.GetAll(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	respondJSON(w, http.StatusOK, events)
}

// Get handles GET /api/events/{id}
func (ec *EventController) Get(w http.ResponseWriter, r *http.Request) {
	event, err := ec.services.Events.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// Create handles POST /api/events
func (ec *EventController) Create(w http.ResponseWriter, r *http.Request) {
	var form models.EventForm
	if err := decodeBody(r, &form); err != nil {
		respondError(w, err)
		return
	}

	event, err := ec.services.Events.Create(r.Context(), &form)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// Update handles PUT /api/events/{id}
func (ec *EventController) Update(w http.ResponseWriter, r *http.Request) {
	var form models.EventForm
	if err := decodeBody(r, &form); err != nil {
		respondError(w, err)
		return
	}

	event, err := ec.services.Events.Update(r.Context(), chi.URLParam(r, "id"), &form)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/events/{id}
func (ec *EventController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := ec.services.Events.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
