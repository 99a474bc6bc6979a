package sessiontokens

import (
	"context"

	"github.com/mikhailbahdashych/identity-core/internal/server/models"
)

// Repository persists refresh-token session records. TokenID values are
// stored in their encrypted form; the caller encrypts before persisting.
type Repository interface {
	// Replace installs tokenID as the user's only session record. An
	// existing record for the same user is overwritten (single active
	// session per account).
	Replace(ctx context.Context, tokenID, userID string) error

	// Find returns the record holding tokenID, or common.ErrorNotFound
	// when it was rotated or revoked.
	Find(ctx context.Context, tokenID string) (*models.SessionToken, error)

	// DeleteByUserID removes the user's session record, if any.
	DeleteByUserID(ctx context.Context, userID string) error
}
