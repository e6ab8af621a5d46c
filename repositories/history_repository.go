package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/blogem/planning-tools/models"
)

// Journal table names. One table per audited subject type; the logs are
// fully independent of each other.
const (
	EventHistoryTable   = "event_history"
	ReleaseHistoryTable = "release_history"
)

var journalTables = map[string]bool{
	EventHistoryTable:   true,
	ReleaseHistoryTable: true,
}

// HistoryRepository is the append-only journal store for one subject type.
// Entries are immutable once inserted; the only mutations are deletions.
type HistoryRepository interface {
	Insert(ctx context.Context, entry *models.HistoryEntry) error
	GetByID(ctx context.Context, id string) (*models.HistoryEntry, error)
	// Recent returns up to limit entries ordered by timestamp descending.
	Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	// Oldest returns the count entries with the smallest timestamps, ties
	// broken by insertion order. Used by the retention archiver.
	Oldest(ctx context.Context, count int) ([]models.HistoryEntry, error)
	Count(ctx context.Context) (int, error)
	// Delete removes one entry and fails with ErrNotFound when it does not
	// exist, which makes it safe as the consuming step of a rollback.
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
	DeleteAll(ctx context.Context) error
}

type historyRepository struct {
	db    DBTX
	table string
}

// NewHistoryRepository creates a journal repository scoped to one of the
// known history tables.
func NewHistoryRepository(db DBTX, table string) HistoryRepository {
	if !journalTables[table] {
		panic(fmt.Sprintf("unknown journal table %q", table))
	}
	return &historyRepository{db: db, table: table}
}

// Insert appends a fully-formed entry. Entries violating the
// action/snapshot invariant are rejected with ErrInvalidEntry.
func (r *historyRepository) Insert(ctx context.Context, entry *models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, action, subject_id, new_data, previous_data, actor_id, actor_name, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Action),
		entry.SubjectID,
		nullBytes(entry.NewData),
		nullBytes(entry.PreviousData),
		nullString(entry.ActorID),
		nullString(entry.ActorName),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s entry: %w", r.table, err)
	}
	return nil
}

// GetByID retrieves a single entry by id
func (r *historyRepository) GetByID(ctx context.Context, id string) (*models.HistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, action, subject_id, new_data, previous_data, actor_id, actor_name, timestamp
		FROM %s WHERE id = ?
	`, r.table)

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s entry %s: %w", r.table, id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s entry: %w", r.table, err)
	}
	return entry, nil
}

// Recent retrieves the newest entries, most recent first
func (r *historyRepository) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, action, subject_id, new_data, previous_data, actor_id, actor_name, timestamp
		FROM %s ORDER BY timestamp DESC, rowid DESC LIMIT ?
	`, r.table)
	return r.queryEntries(ctx, query, limit)
}

// Oldest retrieves the oldest entries, insertion order breaking ties
func (r *historyRepository) Oldest(ctx context.Context, count int) ([]models.HistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, action, subject_id, new_data, previous_data, actor_id, actor_name, timestamp
		FROM %s ORDER BY timestamp ASC, rowid ASC LIMIT ?
	`, r.table)
	return r.queryEntries(ctx, query, count)
}

// Count returns the total number of journal entries
func (r *historyRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s entries: %w", r.table, err)
	}
	return count, nil
}

// Delete removes a single entry by id
func (r *historyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.table), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s entry: %w", r.table, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s entry %s: %w", r.table, id, models.ErrNotFound)
	}
	return nil
}

// DeleteMany removes a set of entries by id. Missing ids are not an error:
// a concurrent archive pass may already have removed them.
func (r *historyRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", r.table, placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %s entries: %w", r.table, err)
	}
	return nil
}

// DeleteAll wipes the journal
func (r *historyRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", r.table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.table, err)
	}
	return nil
}

func (r *historyRepository) queryEntries(ctx context.Context, query string, limit int) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s entry: %w", r.table, err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", r.table, err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	var action string
	var newData, previousData, actorID, actorName sql.NullString

	err := row.Scan(
		&entry.ID,
		&action,
		&entry.SubjectID,
		&newData,
		&previousData,
		&actorID,
		&actorName,
		&entry.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	entry.Action = models.Action(action)
	if newData.Valid {
		entry.NewData = []byte(newData.String)
	}
	if previousData.Valid {
		entry.PreviousData = []byte(previousData.String)
	}
	entry.ActorID = actorID.String
	entry.ActorName = actorName.String
	return &entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}
