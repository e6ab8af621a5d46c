package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blogem/planning-tools/config"
	"github.com/blogem/planning-tools/metrics"
	"github.com/blogem/planning-tools/models"
	"github.com/blogem/planning-tools/repositories"
	"github.com/blogem/planning-tools/userctx"
)

// SubjectStore is the CRUD surface the rollback engine needs from the
// audited entity's repository.
type SubjectStore[T any] interface {
	GetByID(ctx context.Context, id string) (*T, error)
	Save(ctx context.Context, subject *T) error
	Delete(ctx context.Context, id string) error
}

// HistoryOptions tunes one journal instance.
type HistoryOptions[T any] struct {
	// Kind is the snapshot schema tag, e.g. "event" or "release".
	Kind string
	// Limit is the retention cap K.
	Limit int
	// OnEncodeFailure is config.EncodeDegrade or config.EncodeFail.
	OnEncodeFailure string
	// ChildField names the JSON field holding the subject's owned child
	// collection, empty when the subject has none. The field is stripped
	// before an update-rollback is applied.
	ChildField string
	// RestoreChildrenFromSnapshot makes a delete-rollback rebuild children
	// from the snapshot instead of calling DefaultChildren.
	RestoreChildrenFromSnapshot bool
	// DefaultChildren resets the subject's children to fresh defaults.
	DefaultChildren func(*T)
}

// HistoryEntryView is a journal entry with its snapshots decoded for
// display. A snapshot that cannot be decoded leaves its field nil and sets
// SnapshotUnavailable instead of failing the listing.
type HistoryEntryView[T any] struct {
	ID                  string        `json:"id"`
	Action              models.Action `json:"action"`
	SubjectID           string        `json:"subjectId"`
	NewData             *T            `json:"newData,omitempty"`
	PreviousData        *T            `json:"previousData,omitempty"`
	SnapshotUnavailable bool          `json:"snapshotUnavailable,omitempty"`
	ActorID             string        `json:"userId,omitempty"`
	ActorName           string        `json:"userDisplayName,omitempty"`
	Timestamp           time.Time     `json:"timestamp"`
}

// RollbackResult reports what a successful rollback left behind.
type RollbackResult[T any] struct {
	SubjectID string `json:"subjectId"`
	// Subject is the resulting state; nil when the rollback removed the
	// subject (create-rollback).
	Subject *T `json:"subject,omitempty"`
}

// HistoryService is the audit-history engine for one subject type: it
// builds journal entries for mutations, lists them with retention applied,
// and rolls recorded mutations back. Event and Release history are two
// instances of this one implementation.
type HistoryService[T any] struct {
	repos    *repositories.Repositories
	journal  func(*repositories.Repositories) repositories.HistoryRepository
	subjects func(*repositories.Repositories) SubjectStore[T]
	codec    models.Codec[T]
	opts     HistoryOptions[T]
	metrics  *metrics.Metrics

	// archiveMu serializes retention passes for this journal so two
	// concurrent reads cannot compute overlapping overflow sets.
	archiveMu sync.Mutex
}

// NewHistoryService wires a history engine to one journal table and one
// subject store. The accessor funcs re-resolve both against a
// transaction-scoped repository view during rollback.
func NewHistoryService[T any](
	repos *repositories.Repositories,
	journal func(*repositories.Repositories) repositories.HistoryRepository,
	subjects func(*repositories.Repositories) SubjectStore[T],
	opts HistoryOptions[T],
	m *metrics.Metrics,
) *HistoryService[T] {
	return &HistoryService[T]{
		repos:    repos,
		journal:  journal,
		subjects: subjects,
		codec:    models.Codec[T]{Kind: opts.Kind},
		opts:     opts,
		metrics:  m,
	}
}

// Journal exposes the engine's journal within the given repository view, so
// mutation handlers can append entries inside their own transaction.
func (s *HistoryService[T]) Journal(r *repositories.Repositories) repositories.HistoryRepository {
	return s.journal(r)
}

// NewEntry builds a validated journal entry for a mutation, with actor
// attribution resolved from the request context. Snapshots that fail to
// encode are handled per the configured policy: degrade stores an empty
// snapshot, fail aborts the mutation.
func (s *HistoryService[T]) NewEntry(ctx context.Context, action models.Action, subjectID string, previous, current *T) (*models.HistoryEntry, error) {
	entry := &models.HistoryEntry{
		ID:        uuid.NewString(),
		Action:    action,
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
	}

	var err error
	switch action {
	case models.ActionCreate:
		entry.NewData, err = s.encodeSnapshot(current)
	case models.ActionUpdate:
		if entry.PreviousData, err = s.encodeSnapshot(previous); err == nil {
			entry.NewData, err = s.encodeSnapshot(current)
		}
	case models.ActionDelete:
		entry.PreviousData, err = s.encodeSnapshot(previous)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownAction, action)
	}
	if err != nil {
		return nil, err
	}

	// Attribution is best-effort and never blocks the mutation.
	if actorID := userctx.GetUserID(ctx); actorID != "" {
		entry.ActorID = actorID
		if user, lookupErr := s.repos.Users.GetByID(ctx, actorID); lookupErr == nil {
			entry.ActorName = user.DisplayName()
		} else {
			entry.ActorName = userctx.GetUserName(ctx)
		}
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}
	s.metrics.HistoryRecorded.WithLabelValues(s.opts.Kind, string(action)).Inc()
	return entry, nil
}

func (s *HistoryService[T]) encodeSnapshot(subject *T) ([]byte, error) {
	data, err := s.codec.EncodeData(subject)
	if err == nil {
		return data, nil
	}
	if s.opts.OnEncodeFailure == config.EncodeFail {
		return nil, err
	}
	log.Printf("history: storing degraded %s snapshot: %v", s.opts.Kind, err)
	return s.codec.EmptyData(), nil
}

// Archive deletes the oldest entries beyond the retention cap and returns
// how many were evicted. It is serialized per journal and best-effort:
// storage errors are logged, never propagated, so a failing archive pass
// cannot abort the read that triggered it.
func (s *HistoryService[T]) Archive(ctx context.Context) int {
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()

	journal := s.journal(s.repos)

	count, err := journal.Count(ctx)
	if err != nil {
		log.Printf("history: counting %s entries failed: %v", s.opts.Kind, err)
		return 0
	}

	overflow := count - s.opts.Limit
	if overflow <= 0 {
		return 0
	}

	oldest, err := journal.Oldest(ctx, overflow)
	if err != nil {
		log.Printf("history: loading oldest %s entries failed: %v", s.opts.Kind, err)
		return 0
	}

	ids := make([]string, len(oldest))
	for i, entry := range oldest {
		ids[i] = entry.ID
	}
	if err := journal.DeleteMany(ctx, ids); err != nil {
		log.Printf("history: archiving %s entries failed: %v", s.opts.Kind, err)
		return 0
	}

	s.metrics.HistoryArchived.WithLabelValues(s.opts.Kind).Add(float64(len(ids)))
	log.Printf("history: archived %d old %s entries", len(ids), s.opts.Kind)
	return len(ids)
}

// List enforces retention, then returns the retained entries newest first
// with snapshots decoded. A corrupt snapshot degrades only its own entry.
func (s *HistoryService[T]) List(ctx context.Context) ([]HistoryEntryView[T], error) {
	s.Archive(ctx)

	entries, err := s.journal(s.repos).Recent(ctx, s.opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing %s history: %w", s.opts.Kind, err)
	}

	views := make([]HistoryEntryView[T], 0, len(entries))
	for i := range entries {
		views = append(views, s.view(&entries[i]))
	}
	return views, nil
}

func (s *HistoryService[T]) view(entry *models.HistoryEntry) HistoryEntryView[T] {
	view := HistoryEntryView[T]{
		ID:        entry.ID,
		Action:    entry.Action,
		SubjectID: entry.SubjectID,
		ActorID:   entry.ActorID,
		ActorName: entry.ActorName,
		Timestamp: entry.Timestamp,
	}

	if len(entry.NewData) > 0 {
		if subject, err := s.decodeData(entry.NewData); err == nil {
			view.NewData = subject
		} else {
			view.SnapshotUnavailable = true
			log.Printf("history: undecodable new snapshot on %s entry %s: %v", s.opts.Kind, entry.ID, err)
		}
	}
	if len(entry.PreviousData) > 0 {
		if subject, err := s.decodeData(entry.PreviousData); err == nil {
			view.PreviousData = subject
		} else {
			view.SnapshotUnavailable = true
			log.Printf("history: undecodable previous snapshot on %s entry %s: %v", s.opts.Kind, entry.ID, err)
		}
	}
	return view
}

func (s *HistoryService[T]) decodeData(data []byte) (*T, error) {
	snap, err := models.ParseSnapshot(data)
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(snap)
}

// Rollback applies the inverse of the mutation the entry records, then
// consumes the entry. The inverse depends on the action:
//
//   - create: the subject is deleted; an already-absent subject still
//     counts as success, the intent "must not exist" is satisfied.
//   - update: the previous snapshot's fields are applied onto the current
//     subject; fields the snapshot does not cover stay untouched. A
//     vanished subject fails with ErrNotFound.
//   - delete: the previous snapshot is decoded into a full subject that
//     keeps its original id, and persisted as a fresh create.
//
// The subject mutation and the entry deletion run in one transaction, so a
// rollback that loses the race for the entry aborts without applying
// anything, and a failed rollback leaves the entry available for retry.
func (s *HistoryService[T]) Rollback(ctx context.Context, entryID string) (*RollbackResult[T], error) {
	result, err := s.rollback(ctx, entryID)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.Rollbacks.WithLabelValues(s.opts.Kind, outcome).Inc()
	return result, err
}

func (s *HistoryService[T]) rollback(ctx context.Context, entryID string) (*RollbackResult[T], error) {
	entry, err := s.journal(s.repos).GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	// Decode everything the action needs before touching any state; unlike
	// the read path, rollback cannot proceed on corrupt data.
	var prevSnap *models.Snapshot
	var restored *T
	switch entry.Action {
	case models.ActionCreate:
		// Nothing to decode: the inverse only needs the subject id.
	case models.ActionUpdate:
		if prevSnap, err = models.ParseSnapshot(entry.PreviousData); err != nil {
			return nil, err
		}
		if err = s.codec.CheckKind(prevSnap); err != nil {
			return nil, err
		}
		if s.opts.ChildField != "" {
			// Owned children are not restored by an update-rollback.
			delete(prevSnap.Fields, s.opts.ChildField)
		}
	case models.ActionDelete:
		if prevSnap, err = models.ParseSnapshot(entry.PreviousData); err != nil {
			return nil, err
		}
		if restored, err = s.codec.Decode(prevSnap); err != nil {
			return nil, err
		}
		if s.opts.DefaultChildren != nil && !(s.opts.RestoreChildrenFromSnapshot && s.snapshotHasChildren(prevSnap)) {
			s.opts.DefaultChildren(restored)
		}
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownAction, entry.Action)
	}

	result := &RollbackResult[T]{SubjectID: entry.SubjectID}
	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		store := s.subjects(tx)

		switch entry.Action {
		case models.ActionCreate:
			if err := store.Delete(ctx, entry.SubjectID); err != nil && !errors.Is(err, models.ErrNotFound) {
				return err
			}
		case models.ActionUpdate:
			subject, err := store.GetByID(ctx, entry.SubjectID)
			if err != nil {
				return err
			}
			if err := s.codec.Apply(prevSnap, subject); err != nil {
				return err
			}
			if err := store.Save(ctx, subject); err != nil {
				return err
			}
			result.Subject = subject
		case models.ActionDelete:
			if err := store.Save(ctx, restored); err != nil {
				return err
			}
			result.Subject = restored
		}

		// Consuming the entry is conditional: a concurrent rollback of the
		// same entry makes this fail with ErrNotFound and the transaction
		// aborts without double-applying the inverse.
		return s.journal(tx).Delete(ctx, entry.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("history: rolled back %s %s on %s %s", s.opts.Kind, entry.Action, s.opts.Kind, entry.SubjectID)
	return result, nil
}

func (s *HistoryService[T]) snapshotHasChildren(snap *models.Snapshot) bool {
	raw, ok := snap.Fields[s.opts.ChildField]
	return ok && string(raw) != "null"
}

// Clear wipes the whole journal for this subject type.
func (s *HistoryService[T]) Clear(ctx context.Context) error {
	if err := s.journal(s.repos).DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing %s history: %w", s.opts.Kind, err)
	}
	log.Printf("history: cleared all %s entries", s.opts.Kind)
	return nil
}
