// Package users provides the PostgreSQL-backed repository for user and
// profile rows.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mikhailbahdashych/identity-core/internal/common"
	"github.com/mikhailbahdashych/identity-core/internal/dbx"
	"github.com/mikhailbahdashych/identity-core/internal/server/models"
	"github.com/mikhailbahdashych/identity-core/internal/validation"
)

// uniqueViolation reports whether err is a PostgreSQL unique-index violation
// (SQLSTATE 23505). Concurrent registrations can pass the service-level
// lookups and land here instead.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `
	users.id, users.email, users.password, users.personal_id, users.two_fa,
	users.phone, users.notify, users.status, users.closed_at,
	users.changed_email, users.changed_password_at, users.created_at,
	users_info.username`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Password, &user.PersonalID, &user.TwoFa,
		&user.Phone, &user.Notify, &user.Status, &user.ClosedAt,
		&user.ChangedEmail, &user.ChangedPasswordAt, &user.CreatedAt,
		&user.Username,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) Find(ctx context.Context, filter Filter) (*models.User, error) {
	var condition, arg string
	keys := 0
	if filter.ID != "" {
		condition, arg = "users.id = $1", filter.ID
		keys++
	}
	if filter.Email != "" {
		condition, arg = "users.email = $1 AND users.status = 'active'", filter.Email
		keys++
	}
	if filter.Username != "" {
		condition, arg = "users_info.username = $1", filter.Username
		keys++
	}
	if keys != 1 {
		return nil, fmt.Errorf("%w: exactly one lookup key required, got %d", common.ErrorBadRequest, keys)
	}

	query := `SELECT ` + userColumns + `
		 FROM users
		 LEFT JOIN users_info ON users_info.user_id = users.id
		 WHERE ` + condition

	return scanUser(r.db.QueryRowContext(ctx, query, arg))
}

func (r *PostgresRepository) FindByPersonalID(ctx context.Context, personalID string) (*models.PublicProfile, error) {
	query := `
		SELECT users.personal_id, users_info.username, users_info.first_name,
		       users_info.last_name, users_info.status, users_info.company,
		       users_info.location, users_info.about_me, users_info.website_link,
		       users_info.twitter, users_info.github, users_info.reputation
		FROM users
		LEFT JOIN users_info ON users_info.user_id = users.id
		WHERE users.personal_id = $1 AND users.status = 'active'
	`

	profile := &models.PublicProfile{}
	err := r.db.QueryRowContext(ctx, query, personalID).Scan(
		&profile.PersonalID, &profile.Username, &profile.FirstName,
		&profile.LastName, &profile.Status, &profile.Company,
		&profile.Location, &profile.AboutMe, &profile.WebsiteLink,
		&profile.Twitter, &profile.Github, &profile.Reputation,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return profile, nil
}

func (r *PostgresRepository) FindForSignIn(ctx context.Context, email, passwordHash string) (*models.User, error) {
	// Matches the closed row too, so sign-in can reopen the account. When a
	// closed account's address was re-registered, the active row wins.
	query := `SELECT ` + userColumns + `
		 FROM users
		 LEFT JOIN users_info ON users_info.user_id = users.id
		 WHERE users.email = $1 AND users.password = $2
		 ORDER BY (users.status = 'active') DESC
		 LIMIT 1`

	return scanUser(r.db.QueryRowContext(ctx, query, email, passwordHash))
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (string, error) {
	query := `
		INSERT INTO users (email, password, personal_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id string
	if err := r.db.QueryRowContext(ctx, query, user.Email, user.Password, user.PersonalID).Scan(&id); err != nil {
		if uniqueViolation(err) {
			return "", common.ErrorEmailTaken
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO users_info (user_id, username, first_name, last_name, status,
		                        company, location, about_me, website_link, twitter, github)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		profile.UserID, profile.Username, profile.FirstName, profile.LastName,
		profile.Status, profile.Company, profile.Location, profile.AboutMe,
		profile.WebsiteLink, profile.Twitter, profile.Github,
	)
	if err != nil {
		if uniqueViolation(err) {
			return common.ErrorUsernameTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, newHash string, changedAt time.Time) error {
	query := `
		UPDATE users SET password = $2, changed_password_at = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, newHash, changedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ChangeEmail(ctx context.Context, id, newEmail string) error {
	query := `
		UPDATE users SET email = $2, changed_email = true, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, newEmail); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, closedAt time.Time) error {
	query := `
		UPDATE users SET status = 'closed', closed_at = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, closedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Reactivate(ctx context.Context, id string) error {
	query := `
		UPDATE users SET status = 'active', closed_at = NULL, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetTwoFa(ctx context.Context, id string, secret *string) error {
	query := `
		UPDATE users SET two_fa = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, secret); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetPhone(ctx context.Context, id string, phone *string, notify bool) error {
	query := `
		UPDATE users SET phone = $2, notify = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, phone, notify); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, info validation.PersonalInformation) error {
	assignments := []string{}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if info.FirstName != nil {
		add("first_name", *info.FirstName)
	}
	if info.LastName != nil {
		add("last_name", *info.LastName)
	}
	if info.Status != nil {
		add("status", *info.Status)
	}
	if info.Company != nil {
		add("company", *info.Company)
	}
	if info.Location != nil {
		add("location", *info.Location)
	}
	if info.AboutMe != nil {
		add("about_me", *info.AboutMe)
	}
	if info.WebsiteLink != nil {
		add("website_link", *info.WebsiteLink)
	}
	if info.Twitter != nil {
		add("twitter", *info.Twitter)
	}
	if info.Github != nil {
		add("github", *info.Github)
	}
	if info.ShowEmail != nil {
		add("show_email", *info.ShowEmail)
	}

	if len(assignments) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		"UPDATE users_info SET %s, updated_at = now() WHERE user_id = $1",
		strings.Join(assignments, ", "),
	)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SecuritySettings(ctx context.Context, id string) (*models.SecuritySettings, error) {
	query := `
		SELECT two_fa IS NOT NULL, changed_email, changed_password_at, phone, notify
		FROM users
		WHERE id = $1
	`

	settings := &models.SecuritySettings{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&settings.TwoFaEnabled, &settings.ChangedEmail,
		&settings.ChangedPasswordAt, &settings.Phone, &settings.Notify,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return settings, nil
}
