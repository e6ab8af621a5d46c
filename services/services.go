package services

import (
	"github.com/blogem/planning-tools/config"
	"github.com/blogem/planning-tools/metrics"
	"github.com/blogem/planning-tools/models"
	"github.com/blogem/planning-tools/repositories"
)

// Services holds all service instances
type Services struct {
	Events   *EventService
	Releases *ReleaseService
}

// NewServices creates all services with their dependencies. The two history
// engines are instances of the same implementation, parameterized by
// subject type.
func NewServices(repos *repositories.Repositories, cfg *config.Config, m *metrics.Metrics) *Services {
	eventHistory := NewHistoryService(
		repos,
		func(r *repositories.Repositories) repositories.HistoryRepository { return r.EventHistory },
		func(r *repositories.Repositories) SubjectStore[models.Event] { return r.Events },
		HistoryOptions[models.Event]{
			Kind:            "event",
			Limit:           cfg.History.Limit,
			OnEncodeFailure: cfg.History.OnEncodeFailure,
		},
		m,
	)

	releaseHistory := NewHistoryService(
		repos,
		func(r *repositories.Repositories) repositories.HistoryRepository { return r.ReleaseHistory },
		func(r *repositories.Repositories) SubjectStore[models.Release] { return r.Releases },
		HistoryOptions[models.Release]{
			Kind:                        "release",
			Limit:                       cfg.History.Limit,
			OnEncodeFailure:             cfg.History.OnEncodeFailure,
			ChildField:                  "squads",
			RestoreChildrenFromSnapshot: cfg.History.RestoreChildrenFromSnapshot,
			DefaultChildren:             (*models.Release).ResetSquads,
		},
		m,
	)

	return &Services{
		Events:   NewEventService(repos, eventHistory),
		Releases: NewReleaseService(repos, releaseHistory),
	}
}
