package models

import (
	"fmt"
	"time"
)

// Action is the mutation kind a history entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether the action is one of the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// HistoryEntry is one immutable audit record of a single mutation. NewData
// and PreviousData hold JSON-encoded snapshots; which of the two is set is
// determined by Action. Entries are never edited in place, only deleted
// when archived or consumed by a rollback.
type HistoryEntry struct {
	ID           string    `json:"id"`
	Action       Action    `json:"action"`
	SubjectID    string    `json:"subjectId"`
	NewData      []byte    `json:"-"`
	PreviousData []byte    `json:"-"`
	ActorID      string    `json:"userId,omitempty"`
	ActorName    string    `json:"userDisplayName,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Validate enforces the action/snapshot invariant: a create carries only
// the new state, a delete only the previous state, an update both.
func (e *HistoryEntry) Validate() error {
	if !e.Action.Valid() {
		return fmt.Errorf("%w: action %q", ErrInvalidEntry, e.Action)
	}
	if e.SubjectID == "" {
		return fmt.Errorf("%w: subject id is required", ErrInvalidEntry)
	}
	switch e.Action {
	case ActionCreate:
		if len(e.NewData) == 0 {
			return fmt.Errorf("%w: create entry requires a new snapshot", ErrInvalidEntry)
		}
		if len(e.PreviousData) > 0 {
			return fmt.Errorf("%w: create entry must not carry a previous snapshot", ErrInvalidEntry)
		}
	case ActionUpdate:
		if len(e.NewData) == 0 || len(e.PreviousData) == 0 {
			return fmt.Errorf("%w: update entry requires both snapshots", ErrInvalidEntry)
		}
	case ActionDelete:
		if len(e.PreviousData) == 0 {
			return fmt.Errorf("%w: delete entry requires a previous snapshot", ErrInvalidEntry)
		}
		if len(e.NewData) > 0 {
			return fmt.Errorf("%w: delete entry must not carry a new snapshot", ErrInvalidEntry)
		}
	}
	return nil
}
