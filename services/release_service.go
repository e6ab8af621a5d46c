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

// ReleaseService handles release business logic, squad checklist updates
// included. Every mutation is journaled in the same transaction that
// applies it; a squad update is recorded as an update of its release.
type ReleaseService struct {
	repos   *repositories.Repositories
	history *HistoryService[models.Release]
}

// NewReleaseService creates a new release service
func NewReleaseService(repos *repositories.Repositories, history *HistoryService[models.Release]) *ReleaseService {
	return &ReleaseService{repos: repos, history: history}
}

// GetAll retrieves all releases with their squads
func (s *ReleaseService) GetAll(ctx context.Context) ([]models.Release, error) {
	return s.repos.Releases.GetAll(ctx)
}

// GetByID retrieves a single release with its squads
func (s *ReleaseService) GetByID(ctx context.Context, id string) (*models.Release, error) {
	return s.repos.Releases.GetByID(ctx, id)
}

// Create validates the form, persists a new release with its default squad
// checklist and journals the creation
func (s *ReleaseService) Create(ctx context.Context, form *models.ReleaseForm) (*models.Release, error) {
	if errs := form.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(errs, "; "))
	}

	release := form.ToRelease()
	release.ID = uuid.NewString()
	release.ResetSquads()
	now := time.Now().UTC()
	release.CreatedAt = now
	release.UpdatedAt = now

	entry, err := s.history.NewEntry(ctx, models.ActionCreate, release.ID, nil, release)
	if err != nil {
		return nil, err
	}

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Releases.Create(ctx, release); err != nil {
			return err
		}
		return s.history.Journal(tx).Insert(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return release, nil
}

// Update validates the form, applies it to an existing release and journals
// the change with before and after snapshots. Squads are untouched.
func (s *ReleaseService) Update(ctx context.Context, id string, form *models.ReleaseForm) (*models.Release, error) {
	if errs := form.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(errs, "; "))
	}

	previous, err := s.repos.Releases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	release := form.ToRelease()
	release.ID = previous.ID
	release.CreatedAt = previous.CreatedAt
	release.UpdatedAt = time.Now().UTC()
	release.Squads = previous.Squads

	entry, err := s.history.NewEntry(ctx, models.ActionUpdate, id, previous, release)
	if err != nil {
		return nil, err
	}

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Releases.Update(ctx, release); err != nil {
			return err
		}
		return s.history.Journal(tx).Insert(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return release, nil
}

// UpdateSquad updates one squad row of a release. The journal records it as
// an update of the owning release so a rollback restores the release's own
// fields, not the checklist.
func (s *ReleaseService) UpdateSquad(ctx context.Context, releaseID string, squadNumber int, form *models.SquadForm) (*models.Release, error) {
	if squadNumber < 1 || squadNumber > models.DefaultSquadCount {
		return nil, fmt.Errorf("%w: squad number must be between 1 and %d", models.ErrInvalidInput, models.DefaultSquadCount)
	}

	previous, err := s.repos.Releases.GetByID(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	squad := &models.Squad{
		SquadNumber:            squadNumber,
		IsCompleted:            form.IsCompleted,
		FeaturesEmptyConfirmed: form.FeaturesEmptyConfirmed,
		PreMepEmptyConfirmed:   form.PreMepEmptyConfirmed,
		PostMepEmptyConfirmed:  form.PostMepEmptyConfirmed,
	}

	current := *previous
	current.Squads = make([]models.Squad, len(previous.Squads))
	copy(current.Squads, previous.Squads)
	for i := range current.Squads {
		if current.Squads[i].SquadNumber == squadNumber {
			current.Squads[i] = *squad
		}
	}

	entry, err := s.history.NewEntry(ctx, models.ActionUpdate, releaseID, previous, &current)
	if err != nil {
		return nil, err
	}

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Releases.UpdateSquad(ctx, releaseID, squad); err != nil {
			return err
		}
		return s.history.Journal(tx).Insert(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return &current, nil
}

// Delete removes a release and journals it with the last known state,
// squads included
func (s *ReleaseService) Delete(ctx context.Context, id string) error {
	previous, err := s.repos.Releases.GetByID(ctx, id)
	if err != nil {
		return err
	}

	entry, err := s.history.NewEntry(ctx, models.ActionDelete, id, previous, nil)
	if err != nil {
		return err
	}

	return s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Releases.Delete(ctx, id); err != nil {
			return err
		}
		return s.history.Journal(tx).Insert(ctx, entry)
	})
}

// History exposes the release journal engine
func (s *ReleaseService) History() *HistoryService[models.Release] {
	return s.history
}
