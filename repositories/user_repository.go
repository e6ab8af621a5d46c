package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blogem/planning-tools/models"
)

// UserRepository handles persistence of authenticated users. Users are
// upserted from identity-provider claims on login and read back only for
// history attribution.
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

// Upsert inserts the user or refreshes its email and name
func (r *userRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, email, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name
	`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.Name, user.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, name, created_at FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
