package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same repository code serves both direct and transactional access.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories struct holds all repository interfaces
type Repositories struct {
	Events         EventRepository
	Releases       ReleaseRepository
	Users          UserRepository
	EventHistory   HistoryRepository
	ReleaseHistory HistoryRepository

	db *sql.DB // nil inside a transaction scope
}

// NewRepositories creates and initializes all repositories
func NewRepositories(db *sql.DB) *Repositories {
	repos := build(db)
	repos.db = db
	return repos
}

func build(q DBTX) *Repositories {
	return &Repositories{
		Events:         NewEventRepository(q),
		Releases:       NewReleaseRepository(q),
		Users:          NewUserRepository(q),
		EventHistory:   NewHistoryRepository(q, EventHistoryTable),
		ReleaseHistory: NewHistoryRepository(q, ReleaseHistoryTable),
	}
}

// WithTx runs fn against a transaction-scoped view of the repositories and
// commits when fn returns nil. A subject mutation and its history append
// (or the history delete of a rollback) stay atomic this way.
func (r *Repositories) WithTx(ctx context.Context, fn func(tx *Repositories) error) error {
	if r.db == nil {
		// Already inside a transaction; reuse it.
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(build(tx)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
