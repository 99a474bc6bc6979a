package users

import (
	"context"
	"time"

	"github.com/mikhailbahdashych/identity-core/internal/server/models"
	"github.com/mikhailbahdashych/identity-core/internal/validation"
)

// Filter selects a user by exactly one lookup key.
type Filter struct {
	ID       string
	Email    string
	Username string
}

// Repository is the persistence surface for user and profile rows. The
// methods carry no business rules; transaction scoping is the caller's job
// (repositories are bound to a dbx.DBTX that may be a *sql.Tx).
type Repository interface {
	// Find returns the joined user+profile projection for the given filter,
	// or common.ErrorNotFound. Exactly one filter key must be set.
	Find(ctx context.Context, filter Filter) (*models.User, error)

	// FindByPersonalID returns the public projection only.
	FindByPersonalID(ctx context.Context, personalID string) (*models.PublicProfile, error)

	// FindForSignIn matches email and password digest regardless of account
	// status, preferring the active row, so a closed account can be
	// reopened by the sign-in flow.
	FindForSignIn(ctx context.Context, email, passwordHash string) (*models.User, error)

	// Create inserts the user row and returns its generated identifier.
	Create(ctx context.Context, user *models.User) (string, error)

	// CreateProfile inserts the users_info row keyed by the user id.
	CreateProfile(ctx context.Context, profile *models.Profile) error

	UpdatePassword(ctx context.Context, id, newHash string, changedAt time.Time) error
	ChangeEmail(ctx context.Context, id, newEmail string) error
	SoftDelete(ctx context.Context, id string, closedAt time.Time) error
	Reactivate(ctx context.Context, id string) error
	SetTwoFa(ctx context.Context, id string, secret *string) error
	SetPhone(ctx context.Context, id string, phone *string, notify bool) error
	UpdateProfile(ctx context.Context, id string, info validation.PersonalInformation) error
	SecuritySettings(ctx context.Context, id string) (*models.SecuritySettings, error)
}
