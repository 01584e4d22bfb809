package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/srgjo27/taxi_availability/internal/core/domain"
)

// UserRepository covers the two user operations the engine needs. Signup and
// profile CRUD live in the user service that owns the users table.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByContact(ctx context.Context, contact string) (int64, error) {
	query := `
	SELECT user_id FROM users
	WHERE mobile = $1 OR email = $1
	ORDER BY user_id
	LIMIT 1
	`

	var userID int64
	if err := r.db.QueryRowContext(ctx, query, contact).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NewError(domain.CodeUserNotFound, contact, nil)
		}
		return 0, err
	}

	return userID, nil
}

func (r *UserRepository) Lock(ctx context.Context, userID int64) error {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM users WHERE user_id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewError(domain.CodeUserNotFound, fmt.Sprintf("user %d", userID), nil)
		}
		return err
	}

	return nil
}

func (r *UserRepository) Delete(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.NewError(domain.CodeUserNotFound, fmt.Sprintf("user %d", userID), nil)
	}

	return nil
}
