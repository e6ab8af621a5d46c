package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blogem/planning-tools/models"
	"github.com/blogem/planning-tools/repositories"
)

// EventService handles calendar event business logic. Every mutation is
// journaled in the same transaction that applies it.
type EventService struct {
	repos   *repositories.Repositories
	history *HistoryService[models.Event]
}

// NewEventService creates a new event service
func NewEventService(repos *repositories.Repositories, history *HistoryService[models.Event]) *EventService {
	return &EventService{repos: repos, history: history}
}

// GetAll retrieves events matching the filter
func (s *EventService) GetAll(ctx context.Context, filter repositories.EventFilter) ([]models.Event, error) {
	if filter.Category != "" && !models.IsEventCategory(filter.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrInvalidInput, filter.Category)
	}
	if filter.DateFrom != "" && !models.IsValidDate(filter.DateFrom) {
		return nil, fmt.Errorf("%w: from date must be YYYY-MM-DD", models.ErrInvalidInput)
	}
	if filter.DateTo != "" && !models.IsValidDate(filter.DateTo) {
		return nil, fmt.Errorf("%w: to date must be YYYY-MM-DD", models.ErrInvalidInput)
	}
	return s.repos.Events.GetAll(ctx, filter)
}

// GetByID retrieves a single event
func (s *EventService) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return s.repos.Events.GetByID(ctx, id)
}

// Create validates the form, persists a new event and journals the creation
func (s *EventService) Create(ctx context.Context, form *models.EventForm) (*models.Event, error) {
	if errs := form.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(errs, "; "))
	}

	event := form.ToEvent()
	event.ID = uuid.NewString()
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	entry, err := s.history.NewEntry(ctx, models.ActionCreate, event.ID, nil, event)
	if err != nil {
		return nil, err
	}

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Events.Create(ctx, event); err != nil {
			return err
		}
		return s.history.Journal(tx).Insert(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Update validates the form, applies it to an existing event and journals
// the change with before and after snapshots
func (s *EventService) Update(ctx context.Context, id string, form *models.EventForm) (*models.Event, error) {
	if errs := form.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(errs, "; "))
	}

	previous, err := s.repos.Events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	event := form.ToEvent()
	event.ID = previous.ID
	event.CreatedAt = previous.CreatedAt
	event.UpdatedAt = time.Now().UTC()

	entry, err := s.history.NewEntry(ctx, models.ActionUpdate, id, previous, event)
	if err != nil {
		return nil, err
	}

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Events.Update(ctx, event); err != nil {
			return err
		}
		return s.history.Journal(tx).Insert(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Delete removes an event and journals it with the last known state
func (s *EventService) Delete(ctx context.Context, id string) error {
	previous, err := s.repos.Events.GetByID(ctx, id)
	if err != nil {
		return err
	}

	entry, err := s.history.NewEntry(ctx, models.ActionDelete, id, previous, nil)
	if err != nil {
		return err
	}

	return s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Events.Delete(ctx, id); err != nil {
			return err
		}
		return s.history.Journal(tx).Insert(ctx, entry)
	})
}

// History exposes the event journal engine
func (s *EventService) History() *HistoryService[models.Event] {
	return s.history
}
