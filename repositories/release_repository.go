package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blogem/planning-tools/models"
)

// ReleaseRepository interface defines release database operations,
// including the squad checklist owned by each release. GetByID, Save and
// Delete form the subject-store surface for the rollback engine.
type ReleaseRepository interface {
	GetAll(ctx context.Context) ([]models.Release, error)
	GetByID(ctx context.Context, id string) (*models.Release, error)
	Create(ctx context.Context, release *models.Release) error
	// Update writes the release's own fields; squads are updated through
	// UpdateSquad or replaced wholesale by Save.
	Update(ctx context.Context, release *models.Release) error
	UpdateSquad(ctx context.Context, releaseID string, squad *models.Squad) error
	// Save upserts the release and replaces its squads with the ones on
	// the entity. Used by rollback to restore recorded state verbatim.
	Save(ctx context.Context, release *models.Release) error
	Delete(ctx context.Context, id string) error
}

type releaseRepository struct {
	db DBTX
}

// NewReleaseRepository creates a new release repository
func NewReleaseRepository(db DBTX) ReleaseRepository {
	return &releaseRepository{db: db}
}

const releaseColumns = `id, name, release_date, status, type, description, created_at, updated_at`

// GetAll retrieves all releases with their squads, newest first
func (r *releaseRepository) GetAll(ctx context.Context) ([]models.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases ORDER BY release_date DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()

	var releases []models.Release
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, *release)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating releases: %w", err)
	}

	squadsByRelease, err := r.loadAllSquads(ctx)
	if err != nil {
		return nil, err
	}
	for i := range releases {
		releases[i].Squads = squadsByRelease[releases[i].ID]
	}
	return releases, nil
}

// GetByID retrieves a release with its squads
func (r *releaseRepository) GetByID(ctx context.Context, id string) (*models.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE id = ?`

	release, err := scanRelease(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("release %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release: %w", err)
	}

	squads, err := r.loadSquads(ctx, id)
	if err != nil {
		return nil, err
	}
	release.Squads = squads
	return release, nil
}

// Create inserts a new release and its squads
func (r *releaseRepository) Create(ctx context.Context, release *models.Release) error {
	now := time.Now().UTC()
	if release.CreatedAt.IsZero() {
		release.CreatedAt = now
	}
	release.UpdatedAt = now

	query := `
		INSERT INTO releases (` + releaseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, releaseArgs(release)...)
	if err != nil {
		return fmt.Errorf("failed to create release: %w", err)
	}

	return r.insertSquads(ctx, release.ID, release.Squads)
}

// Update updates an existing release's own fields
func (r *releaseRepository) Update(ctx context.Context, release *models.Release) error {
	release.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE releases
		SET name = ?, release_date = ?, status = ?, type = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		release.Name, release.ReleaseDate, release.Status, release.Type,
		nullString(release.Description), release.UpdatedAt, release.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update release: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("release %s: %w", release.ID, models.ErrNotFound)
	}
	return nil
}

// UpdateSquad updates one squad row of a release
func (r *releaseRepository) UpdateSquad(ctx context.Context, releaseID string, squad *models.Squad) error {
	query := `
		UPDATE squads
		SET is_completed = ?, features_empty_confirmed = ?, pre_mep_empty_confirmed = ?, post_mep_empty_confirmed = ?
		WHERE release_id = ? AND squad_number = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		squad.IsCompleted, squad.FeaturesEmptyConfirmed, squad.PreMepEmptyConfirmed,
		squad.PostMepEmptyConfirmed, releaseID, squad.SquadNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to update squad: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("squad %d of release %s: %w", squad.SquadNumber, releaseID, models.ErrNotFound)
	}
	return nil
}

// Save upserts the release and replaces its squads
func (r *releaseRepository) Save(ctx context.Context, release *models.Release) error {
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now().UTC()
	}
	if release.UpdatedAt.IsZero() {
		release.UpdatedAt = release.CreatedAt
	}

	query := `
		INSERT INTO releases (` + releaseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, release_date = excluded.release_date,
			status = excluded.status, type = excluded.type,
			description = excluded.description, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, releaseArgs(release)...); err != nil {
		return fmt.Errorf("failed to save release: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM squads WHERE release_id = ?", release.ID); err != nil {
		return fmt.Errorf("failed to replace squads: %w", err)
	}
	return r.insertSquads(ctx, release.ID, release.Squads)
}

// Delete deletes a release; its squads cascade
func (r *releaseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM releases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete release: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("release %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *releaseRepository) insertSquads(ctx context.Context, releaseID string, squads []models.Squad) error {
	for _, squad := range squads {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO squads (release_id, squad_number, is_completed, features_empty_confirmed, pre_mep_empty_confirmed, post_mep_empty_confirmed)
			VALUES (?, ?, ?, ?, ?, ?)
		`, releaseID, squad.SquadNumber, squad.IsCompleted, squad.FeaturesEmptyConfirmed,
			squad.PreMepEmptyConfirmed, squad.PostMepEmptyConfirmed)
		if err != nil {
			return fmt.Errorf("failed to insert squad %d: %w", squad.SquadNumber, err)
		}
	}
	return nil
}

const squadColumns = `release_id, squad_number, is_completed, features_empty_confirmed, pre_mep_empty_confirmed, post_mep_empty_confirmed`

func (r *releaseRepository) loadSquads(ctx context.Context, releaseID string) ([]models.Squad, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+squadColumns+` FROM squads WHERE release_id = ? ORDER BY squad_number ASC`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query squads: %w", err)
	}
	defer rows.Close()
	return collectSquads(rows, nil)
}

func (r *releaseRepository) loadAllSquads(ctx context.Context) (map[string][]models.Squad, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+squadColumns+` FROM squads ORDER BY release_id, squad_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query squads: %w", err)
	}
	defer rows.Close()

	byRelease := make(map[string][]models.Squad)
	if _, err := collectSquads(rows, byRelease); err != nil {
		return nil, err
	}
	return byRelease, nil
}

func collectSquads(rows *sql.Rows, byRelease map[string][]models.Squad) ([]models.Squad, error) {
	var squads []models.Squad
	for rows.Next() {
		var releaseID string
		var squad models.Squad
		err := rows.Scan(&releaseID, &squad.SquadNumber, &squad.IsCompleted,
			&squad.FeaturesEmptyConfirmed, &squad.PreMepEmptyConfirmed, &squad.PostMepEmptyConfirmed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan squad: %w", err)
		}
		if byRelease != nil {
			byRelease[releaseID] = append(byRelease[releaseID], squad)
		} else {
			squads = append(squads, squad)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating squads: %w", err)
	}
	return squads, nil
}

func releaseArgs(release *models.Release) []any {
	return []any{
		release.ID, release.Name, release.ReleaseDate, release.Status,
		release.Type, nullString(release.Description), release.CreatedAt, release.UpdatedAt,
	}
}

func scanRelease(row rowScanner) (*models.Release, error) {
	var release models.Release
	var description sql.NullString

	err := row.Scan(
		&release.ID, &release.Name, &release.ReleaseDate, &release.Status,
		&release.Type, &description, &release.CreatedAt, &release.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	release.Description = description.String
	return &release, nil
}
