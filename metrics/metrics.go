package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	HistoryRecorded *prometheus.CounterVec
	HistoryArchived *prometheus.CounterVec
	Rollbacks       *prometheus.CounterVec
}

// New creates and registers all metrics with the given registerer. Tests
// pass a fresh registry so services can be constructed independently.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HistoryRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planning_history_entries_recorded_total",
			Help: "Total number of history journal entries recorded, by subject kind and action",
		}, []string{"kind", "action"}),
		HistoryArchived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planning_history_entries_archived_total",
			Help: "Total number of history journal entries evicted by retention",
		}, []string{"kind"}),
		Rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "planning_history_rollbacks_total",
			Help: "Total number of rollback attempts, by subject kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}
