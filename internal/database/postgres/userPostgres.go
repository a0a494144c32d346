package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eventpro/booking-api/internal/entity"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// Ensure inserts the user on first sign-in and refreshes profile fields on
// later ones. user_role is set only on insert: the stored role is the
// authoritative one and identity-provider data never overwrites it.
func (r *userRepository) Ensure(ctx context.Context, user *entity.User) (*entity.User, error) {
	query := `
		INSERT INTO users (id, email, display_name, user_role, created_at)
		VALUES ($1, $2, $3, 'user', $4)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, display_name = EXCLUDED.display_name
		RETURNING id, email, display_name, user_role, created_at
	`

	var stored entity.User
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		time.Now(),
	).Scan(
		&stored.ID,
		&stored.Email,
		&stored.DisplayName,
		&stored.UserRole,
		&stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %v", err)
	}

	return &stored, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT id, email, display_name, user_role, created_at FROM users WHERE id = $1`

	var user entity.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.UserRole,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}

	return &user, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role entity.UserRole) error {
	query := `UPDATE users SET user_role = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, role, id)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrUserNotFound
	}

	return nil
}

func (r *userRepository) GetAll(ctx context.Context) ([]*entity.User, error) {
	query := `SELECT id, email, display_name, user_role, created_at FROM users ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %v", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var user entity.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.DisplayName,
			&user.UserRole,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %v", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %v", err)
	}

	return users, nil
}
