package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blogem/planning-tools/models"
)

// EventFilter narrows GetAll results. Zero values mean "no constraint".
type EventFilter struct {
	Category string
	DateFrom string // YYYY-MM-DD inclusive
	DateTo   string // YYYY-MM-DD inclusive
	Search   string // matches title or description
}

// EventRepository interface defines event database operations. GetByID,
// Save and Delete also form the subject-store surface the rollback engine
// works against.
type EventRepository interface {
	GetAll(ctx context.Context, filter EventFilter) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	// Save upserts the event as-is, timestamps included. Used by rollback
	// to restore recorded state verbatim.
	Save(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
}

type eventRepository struct {
	db DBTX
}

// NewEventRepository creates a new event repository
func NewEventRepository(db DBTX) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, title, date, end_date, start_time, end_time, color, icon, category, description, created_at, updated_at`

// GetAll retrieves events matching the filter, ordered by start date
func (r *eventRepository) GetAll(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var conditions []string
	var args []any

	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.DateTo)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY date ASC, start_time ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// GetByID retrieves an event by ID
func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// Create inserts a new event
func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, eventArgs(event)...)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// Update updates an existing event
func (r *eventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE events
		SET title = ?, date = ?, end_date = ?, start_time = ?, end_time = ?,
		    color = ?, icon = ?, category = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		event.Title, event.Date, nullString(event.EndDate), nullString(event.StartTime),
		nullString(event.EndTime), event.Color, event.Icon, event.Category,
		nullString(event.Description), event.UpdatedAt, event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event %s: %w", event.ID, models.ErrNotFound)
	}
	return nil
}

// Save upserts the event without touching its timestamps
func (r *eventRepository) Save(ctx context.Context, event *models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, date = excluded.date, end_date = excluded.end_date,
			start_time = excluded.start_time, end_time = excluded.end_time,
			color = excluded.color, icon = excluded.icon, category = excluded.category,
			description = excluded.description, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, eventArgs(event)...); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// Delete deletes an event by ID
func (r *eventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func eventArgs(event *models.Event) []any {
	return []any{
		event.ID, event.Title, event.Date, nullString(event.EndDate),
		nullString(event.StartTime), nullString(event.EndTime), event.Color,
		event.Icon, event.Category, nullString(event.Description),
		event.CreatedAt, event.UpdatedAt,
	}
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var event models.Event
	var endDate, startTime, endTime, description sql.NullString

	err := row.Scan(
		&event.ID, &event.Title, &event.Date, &endDate, &startTime, &endTime,
		&event.Color, &event.Icon, &event.Category, &description,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.EndDate = endDate.String
	event.StartTime = startTime.String
	event.EndTime = endTime.String
	event.Description = description.String
	return &event, nil
}
