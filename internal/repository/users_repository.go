package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formbricks/usersync/internal/huberrors"
	"github.com/formbricks/usersync/internal/models"
)

const userColumns = `id, clerk_id, email, username, first_name, last_name, photo, created_at, updated_at`

// UsersRepository handles data access for users synced from Clerk.
type UsersRepository struct {
	db *pgxpool.Pool
}

// NewUsersRepository creates a new users repository
func NewUsersRepository(db *pgxpool.Pool) *UsersRepository {
	return &UsersRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID, &user.ClerkID, &user.Email, &user.Username,
		&user.FirstName, &user.LastName, &user.Photo,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with the operation
	}

	return &user, nil
}

// Create inserts a user keyed by Clerk ID. A second create for the same Clerk ID (a redelivered
// user.created) overwrites the profile fields and keeps the original id.
func (r *UsersRepository) Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	query := `
		INSERT INTO users (id, clerk_id, email, username, first_name, last_name, photo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (clerk_id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			photo = EXCLUDED.photo,
			updated_at = NOW()
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		id, req.ClerkID, req.Email, req.Username, req.FirstName, req.LastName, req.Photo,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Update overwrites names and username. The photo is only changed when req.Photo is set.
func (r *UsersRepository) Update(ctx context.Context, clerkID string, req *models.UpdateUserRequest) (*models.User, error) {
	query := `
		UPDATE users SET
			first_name = $2,
			last_name = $3,
			username = $4,
			photo = COALESCE($5, photo),
			updated_at = NOW()
		WHERE clerk_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		clerkID, req.FirstName, req.LastName, req.Username, req.Photo,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("user", "user not found")
		}

		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// Delete removes a user by Clerk ID and returns the deleted row.
func (r *UsersRepository) Delete(ctx context.Context, clerkID string) (*models.User, error) {
	query := `DELETE FROM users WHERE clerk_id = $1 RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("user", "user not found")
		}

		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	return user, nil
}
