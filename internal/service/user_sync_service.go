package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/formbricks/usersync/internal/api/validation"
	"github.com/formbricks/usersync/internal/datatypes"
	"github.com/formbricks/usersync/internal/huberrors"
	"github.com/formbricks/usersync/internal/models"
)

// Downstream operation names, used in DownstreamError.Op and in logs.
const (
	OpCreateUser  = "create_user"
	OpSetMetadata = "set_metadata"
	OpUpdateUser  = "update_user"
	OpDeleteUser  = "delete_user"
)

// errNoUserReturned is wrapped when the store reports success but returns no record.
var errNoUserReturned = errors.New("store returned no user")

// UsersRepository is the downstream user-record store, addressed by Clerk user ID.
type UsersRepository interface {
	Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, clerkID string, req *models.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, clerkID string) (*models.User, error)
}

// MetadataWriter stores the application's user ID on the identity provider's user.
type MetadataWriter interface {
	SetUserID(ctx context.Context, clerkID, userID string) error
}

// SyncResult is the outcome of a successfully handled event.
// Acknowledged is set for event types this service does not act on; User is nil then.
type SyncResult struct {
	Acknowledged bool
	User         *models.User
}

// UserSyncService routes verified Clerk events to the user store.
// It keeps no state between calls and performs no deduplication: a redelivered
// user.created reaches the store again.
type UserSyncService struct {
	users    UsersRepository
	metadata MetadataWriter
}

// NewUserSyncService creates a new user sync service.
func NewUserSyncService(users UsersRepository, metadata MetadataWriter) *UserSyncService {
	return &UserSyncService{
		users:    users,
		metadata: metadata,
	}
}

// HandleEvent dispatches event by type. Errors are either *huberrors.ValidationError
// (the payload lacks what the event type needs) or *huberrors.DownstreamError.
func (s *UserSyncService) HandleEvent(ctx context.Context, event *models.WebhookEvent) (*SyncResult, error) {
	switch event.EventType() {
	case datatypes.UserCreated:
		return s.createUser(ctx, event)
	case datatypes.UserUpdated:
		return s.updateUser(ctx, event)
	case datatypes.UserDeleted:
		return s.deleteUser(ctx, event)
	case datatypes.EventUnknown:
	}

	return &SyncResult{Acknowledged: true}, nil
}

func userData(event *models.WebhookEvent) (*models.UserEventData, error) {
	data, err := event.UserData()
	if err != nil {
		return nil, huberrors.NewValidationError("data", err.Error())
	}

	return data, nil
}

// BuildCreateUserRequest applies the user.created field rules: id, a usable email and
// username are required; first and last name default to "".
func BuildCreateUserRequest(data *models.UserEventData) (*models.CreateUserRequest, error) {
	email, hasEmail := data.PrimaryEmail()
	username := deref(data.Username)

	if !hasEmail || username == "" {
		return nil, huberrors.NewValidationError("email_addresses,username", "Required fields missing")
	}

	if data.ExternalID() == "" {
		return nil, huberrors.NewValidationError("id", "Clerk ID is missing")
	}

	req := &models.CreateUserRequest{
		ClerkID:   data.ExternalID(),
		Email:     email,
		Username:  username,
		FirstName: deref(data.FirstName),
		LastName:  deref(data.LastName),
		Photo:     deref(data.ImageURL),
	}

	if err := validation.ValidateStruct(req); err != nil {
		return nil, huberrors.NewValidationError("data", err.Error())
	}

	return req, nil
}

// BuildUpdateUserRequest applies the user.updated field rules: names and username are
// always sent, defaulting to ""; photo is only sent when image_url is present.
func BuildUpdateUserRequest(data *models.UserEventData) (*models.UpdateUserRequest, error) {
	req := &models.UpdateUserRequest{
		FirstName: deref(data.FirstName),
		LastName:  deref(data.LastName),
		Username:  deref(data.Username),
		Photo:     data.ImageURL,
	}

	if err := validation.ValidateStruct(req); err != nil {
		return nil, huberrors.NewValidationError("data", err.Error())
	}

	return req, nil
}

func (s *UserSyncService) createUser(ctx context.Context, event *models.WebhookEvent) (*SyncResult, error) {
	data, err := userData(event)
	if err != nil {
		return nil, err
	}

	req, err := BuildCreateUserRequest(data)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, req)
	if err != nil {
		return nil, s.downstream(ctx, OpCreateUser, req.ClerkID, err)
	}

	if user == nil {
		return nil, s.downstream(ctx, OpCreateUser, req.ClerkID, errNoUserReturned)
	}

	// No rollback: if this fails the row stays and the 500 surfaces the inconsistency.
	if err := s.metadata.SetUserID(ctx, req.ClerkID, user.ID.String()); err != nil {
		return nil, s.downstream(ctx, OpSetMetadata, req.ClerkID, err)
	}

	slog.InfoContext(ctx, "User created from webhook", "clerk_id", req.ClerkID, "user_id", user.ID)

	return &SyncResult{User: user}, nil
}

func (s *UserSyncService) updateUser(ctx context.Context, event *models.WebhookEvent) (*SyncResult, error) {
	data, err := userData(event)
	if err != nil {
		return nil, err
	}

	clerkID := data.ExternalID()
	if clerkID == "" {
		return nil, huberrors.NewValidationError("id", "User ID missing")
	}

	req, err := BuildUpdateUserRequest(data)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Update(ctx, clerkID, req)
	if err != nil {
		return nil, s.downstream(ctx, OpUpdateUser, clerkID, err)
	}

	slog.InfoContext(ctx, "User updated from webhook", "clerk_id", clerkID)

	return &SyncResult{User: user}, nil
}

func (s *UserSyncService) deleteUser(ctx context.Context, event *models.WebhookEvent) (*SyncResult, error) {
	data, err := userData(event)
	if err != nil {
		return nil, err
	}

	clerkID := data.ExternalID()
	if clerkID == "" {
		return nil, huberrors.NewValidationError("id", "User ID missing")
	}

	user, err := s.users.Delete(ctx, clerkID)
	if err != nil {
		return nil, s.downstream(ctx, OpDeleteUser, clerkID, err)
	}

	slog.InfoContext(ctx, "User deleted from webhook", "clerk_id", clerkID)

	return &SyncResult{User: user}, nil
}

func (s *UserSyncService) downstream(ctx context.Context, op, clerkID string, err error) error {
	slog.ErrorContext(ctx, "User sync downstream call failed",
		"op", op,
		"clerk_id", clerkID,
		"error", err,
	)

	return fmt.Errorf("sync user %s: %w", clerkID, huberrors.NewDownstreamError(op, err))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
