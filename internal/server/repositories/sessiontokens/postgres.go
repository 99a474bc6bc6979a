// Package sessiontokens provides a PostgreSQL-backed repository for the
// refresh-token records used in the authentication flow.
package sessiontokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mikhailbahdashych/identity-core/internal/common"
	"github.com/mikhailbahdashych/identity-core/internal/dbx"
	"github.com/mikhailbahdashych/identity-core/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Replace relies on the UNIQUE (user_id) constraint: rotation is a single
// upsert, so two simultaneously valid records can never exist for one user.
func (r *PostgresRepository) Replace(ctx context.Context, tokenID, userID string) error {
	query := `
		INSERT INTO session_tokens (token_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET token_id = EXCLUDED.token_id, created_at = now(), updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, tokenID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, tokenID string) (*models.SessionToken, error) {
	query := `
		SELECT id, token_id, user_id, created_at
		FROM session_tokens
		WHERE token_id = $1
	`

	token := &models.SessionToken{}
	err := r.db.QueryRowContext(ctx, query, tokenID).Scan(&token.ID, &token.TokenID, &token.UserID, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `
		DELETE FROM session_tokens
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
