package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the application's own record of a Clerk user.
type User struct {
	ID        uuid.UUID `json:"id"`
	ClerkID   string    `json:"clerk_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Photo     string    `json:"photo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserRequest is the normalized record built from a user.created event.
type CreateUserRequest struct {
	ClerkID   string `json:"clerk_id" validate:"required,no_null_bytes"`
	Email     string `json:"email" validate:"required,no_null_bytes"`
	Username  string `json:"username" validate:"required,no_null_bytes"`
	FirstName string `json:"first_name" validate:"no_null_bytes"`
	LastName  string `json:"last_name" validate:"no_null_bytes"`
	Photo     string `json:"photo" validate:"no_null_bytes"`
}

// UpdateUserRequest is built from a user.updated event. Names and username are always
// sent (defaulting to ""); Photo is nil when the event carried no image_url, which leaves
// the stored photo untouched. Email is never updated from webhooks.
type UpdateUserRequest struct {
	FirstName string  `json:"first_name" validate:"no_null_bytes"`
	LastName  string  `json:"last_name" validate:"no_null_bytes"`
	Username  string  `json:"username" validate:"no_null_bytes"`
	Photo     *string `json:"photo,omitempty" validate:"omitempty,no_null_bytes"`
}

// SyncResponse is the body returned to Clerk after a successful mutation.
type SyncResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}
