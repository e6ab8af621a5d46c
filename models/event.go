package models

import (
	"time"
)

// EventCategories is the closed set of calendar event categories.
var EventCategories = []string{
	"mep", "hotfix", "maintenance", "pi_planning", "sprint_start",
	"code_freeze", "psi", "other",
}

// Event represents a calendar event in the planning tool
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`              // YYYY-MM-DD (start date)
	EndDate     string    `json:"endDate,omitempty"` // optional end date for periods
	StartTime   string    `json:"startTime,omitempty"`
	EndTime     string    `json:"endTime,omitempty"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsEventCategory reports whether the value is a known event category.
func IsEventCategory(category string) bool {
	return contains(EventCategories, category)
}

// EventForm represents the request payload for creating/updating events
type EventForm struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	EndDate     string `json:"endDate"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// ToEvent builds an event entity from the validated form
func (f *EventForm) ToEvent() *Event {
	return &Event{
		Title:       f.Title,
		Date:        f.Date,
		EndDate:     f.EndDate,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		Color:       f.Color,
		Icon:        f.Icon,
		Category:    f.Category,
		Description: f.Description,
	}
}

// Validate validates the event form data
func (f *EventForm) Validate() []string {
	var errors []string

	if f.Title == "" {
		errors = append(errors, "Title is required")
	}
	if len(f.Title) > 255 {
		errors = append(errors, "Title must be less than 255 characters")
	}

	if f.Date == "" {
		errors = append(errors, "Date is required")
	} else if !IsValidDate(f.Date) {
		errors = append(errors, "Date must be in YYYY-MM-DD format")
	}

	if f.EndDate != "" {
		if !IsValidDate(f.EndDate) {
			errors = append(errors, "End date must be in YYYY-MM-DD format")
		} else if IsValidDate(f.Date) && f.EndDate < f.Date {
			errors = append(errors, "End date must not be before the start date")
		}
	}

	if f.StartTime != "" && !IsValidTime(f.StartTime) {
		errors = append(errors, "Start time must be in HH:MM format")
	}
	if f.EndTime != "" && !IsValidTime(f.EndTime) {
		errors = append(errors, "End time must be in HH:MM format")
	}

	if f.Color == "" {
		errors = append(errors, "Color is required")
	}
	if f.Icon == "" {
		errors = append(errors, "Icon is required")
	}

	if f.Category == "" {
		errors = append(errors, "Category is required")
	} else if !contains(EventCategories, f.Category) {
		errors = append(errors, "Category is not a known event category")
	}

	return errors
}
