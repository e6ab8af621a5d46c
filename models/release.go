package models

import (
	"time"
)

// DefaultSquadCount is the number of squads every release owns.
const DefaultSquadCount = 6

// ReleaseStatuses is the closed set of release workflow states.
var ReleaseStatuses = []string{"draft", "in_progress", "completed", "cancelled"}

// ReleaseTypes is the closed set of release kinds.
var ReleaseTypes = []string{"release", "hotfix"}

// Release represents a planned release and its squad checklist
type Release struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ReleaseDate time.Time `json:"releaseDate"`
	Status      string    `json:"status"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Squads      []Squad   `json:"squads,omitempty"`
}

// Squad is one squad's checklist row for a release
type Squad struct {
	SquadNumber            int  `json:"squadNumber"`
	IsCompleted            bool `json:"isCompleted"`
	FeaturesEmptyConfirmed bool `json:"featuresEmptyConfirmed"`
	PreMepEmptyConfirmed   bool `json:"preMepEmptyConfirmed"`
	PostMepEmptyConfirmed  bool `json:"postMepEmptyConfirmed"`
}

// DefaultSquads returns the fresh squad checklist a new release starts with.
func DefaultSquads() []Squad {
	squads := make([]Squad, 0, DefaultSquadCount)
	for i := 1; i <= DefaultSquadCount; i++ {
		squads = append(squads, Squad{SquadNumber: i})
	}
	return squads
}

// ResetSquads replaces the release's squads with fresh defaults.
func (r *Release) ResetSquads() {
	r.Squads = DefaultSquads()
}

// ReleaseForm represents the request payload for creating/updating releases
type ReleaseForm struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"releaseDate"` // RFC 3339
	Status      string `json:"status"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ToRelease builds a release entity from the validated form. The release
// date has already been checked by Validate.
func (f *ReleaseForm) ToRelease() *Release {
	date, _ := time.Parse(time.RFC3339, f.ReleaseDate)
	status := f.Status
	if status == "" {
		status = "draft"
	}
	releaseType := f.Type
	if releaseType == "" {
		releaseType = "release"
	}
	return &Release{
		Name:        f.Name,
		ReleaseDate: date,
		Status:      status,
		Type:        releaseType,
		Description: f.Description,
	}
}

// Validate validates the release form data
func (f *ReleaseForm) Validate() []string {
	var errors []string

	if f.Name == "" {
		errors = append(errors, "Name is required")
	}
	if len(f.Name) > 255 {
		errors = append(errors, "Name must be less than 255 characters")
	}

	if f.ReleaseDate == "" {
		errors = append(errors, "Release date is required")
	} else if _, err := time.Parse(time.RFC3339, f.ReleaseDate); err != nil {
		errors = append(errors, "Release date must be an RFC 3339 timestamp")
	}

	if f.Status != "" && !contains(ReleaseStatuses, f.Status) {
		errors = append(errors, "Status is not a known release status")
	}
	if f.Type != "" && !contains(ReleaseTypes, f.Type) {
		errors = append(errors, "Type is not a known release type")
	}

	return errors
}

// SquadForm represents the request payload for updating one squad row
type SquadForm struct {
	IsCompleted            bool `json:"isCompleted"`
	FeaturesEmptyConfirmed bool `json:"featuresEmptyConfirmed"`
	PreMepEmptyConfirmed   bool `json:"preMepEmptyConfirmed"`
	PostMepEmptyConfirmed  bool `json:"postMepEmptyConfirmed"`
}
