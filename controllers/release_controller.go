package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blogem/planning-tools/models"
	"github.com/blogem/planning-tools/services"
)

// ReleaseController handles the release endpoints, squad checklist included
type ReleaseController struct {
	services *services.Services
}

// NewReleaseController creates a new release controller
func NewReleaseController(services *services.Services) *ReleaseController {
	return &ReleaseController{services: services}
}

// List handles GET /api/releases
func (rc *ReleaseController) List(w http.ResponseWriter, r *http.Request) {
	releases, err := rc.services.Releases.GetAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if releases == nil {
		releases = []models.Release{}
	}
	respondJSON(w, http.StatusOK, releases)
}

// Get handles GET /api/releases/{id}
func (rc *ReleaseController) Get(w http.ResponseWriter, r *http.Request) {
	release, err := rc.services.Releases.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, release)
}

// Create handles POST /api/releases
func (rc *ReleaseController) Create(w http.ResponseWriter, r *http.Request) {
	var form models.ReleaseForm
	if err := decodeBody(r, &form); err != nil {
		respondError(w, err)
		return
	}

	release, err := rc.services.Releases.Create(r.Context(), &form)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, release)
}

// Update handles PUT /api/releases/{id}
func (rc *ReleaseController) Update(w http.ResponseWriter, r *http.Request) {
	var form models.ReleaseForm
	if err := decodeBody(r, &form); err != nil {
		respondError(w, err)
		return
	}

	release, err := rc.services.Releases.Update(r.Context(), chi.URLParam(r, "id"), &form)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, release)
}

// UpdateSquad handles PUT /api/releases/{id}/squads/{number}
func (rc *ReleaseController) UpdateSquad(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, models.ErrInvalidInput)
		return
	}

	var form models.SquadForm
	if err := decodeBody(r, &form); err != nil {
		respondError(w, err)
		return
	}

	release, err := rc.services.Releases.UpdateSquad(r.Context(), chi.URLParam(r, "id"), number, &form)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, release)
}

// Delete handles DELETE /api/releases/{id}
func (rc *ReleaseController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := rc.services.Releases.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
