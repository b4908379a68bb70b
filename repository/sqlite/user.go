package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	const op = "UserRepository.Save"

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	err := withLockRetry(op, func() error {
		_, err := r.db.ExecContext(ctx, `
            INSERT INTO users (id, credits, created_at, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                credits = excluded.credits,
                updated_at = excluded.updated_at`,
			user.ID, user.Credits, user.CreatedAt, user.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return errors.Internal(op, err, "Failed to save user")
	}
	return nil
}

func (r *UserRepository) Find(ctx context.Context, id string) (*models.User, error) {
	const op = "UserRepository.Find"

	user := &models.User{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, credits, created_at, updated_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Credits, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "User not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query user")
	}
	return user, nil
}

func (r *UserRepository) ListIDsWithMinCredits(ctx context.Context, minCredits int) ([]string, error) {
	const op = "UserRepository.ListIDsWithMinCredits"

	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM users WHERE credits >= ? ORDER BY id", minCredits)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query users")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Internal(op, err, "Failed to scan user")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to iterate users")
	}
	return ids, nil
}
