package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mikhailbahdashych/identity-core/internal/common"
	"github.com/mikhailbahdashych/identity-core/internal/server/models"
	"github.com/mikhailbahdashych/identity-core/internal/validation"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userColumnNames = []string{
	"id", "email", "password", "personal_id", "two_fa",
	"phone", "notify", "status", "closed_at",
	"changed_email", "changed_password_at", "created_at",
	"username",
}

func activeUserRow(created time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userColumnNames).AddRow(
		"u-1", "jdoe@example.com", "digest", "1234567890", nil,
		nil, false, "active", nil,
		false, nil, created,
		"jdoe",
	)
}

func TestFind_ByEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+.*FROM\s+users\s+LEFT\s+JOIN\s+users_info.*WHERE\s+users\.email\s*=\s*\$1\s+AND\s+users\.status\s*=\s*'active'`
	mock.ExpectQuery(q).WithArgs("jdoe@example.com").WillReturnRows(activeUserRow(time.Now()))

	got, err := repo.Find(context.Background(), Filter{Email: "jdoe@example.com"})
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got.ID != "u-1" || got.Username != "jdoe" || got.Status != models.AccountActive {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.TwoFa != nil || got.Phone != nil || got.ChangedPasswordAt != nil {
		t.Fatalf("expected nil optional fields: %+v", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+users`).
		WithArgs("u-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), Filter{ID: "u-404"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestFind_FilterKeyCount(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.Find(context.Background(), Filter{})
	if !errors.Is(err, common.ErrorBadRequest) {
		t.Fatalf("expected ErrorBadRequest for empty filter, got %v", err)
	}

	_, err = repo.Find(context.Background(), Filter{ID: "u-1", Email: "jdoe@example.com"})
	if !errors.Is(err, common.ErrorBadRequest) {
		t.Fatalf("expected ErrorBadRequest for two keys, got %v", err)
	}
}

func TestFindForSignIn_PrefersActiveRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+.*FROM\s+users.*WHERE\s+users\.email\s*=\s*\$1\s+AND\s+users\.password\s*=\s*\$2\s+ORDER\s+BY\s+\(users\.status\s*=\s*'active'\)\s+DESC\s+LIMIT\s+1`
	mock.ExpectQuery(q).WithArgs("jdoe@example.com", "digest").WillReturnRows(activeUserRow(time.Now()))

	got, err := repo.FindForSignIn(context.Background(), "jdoe@example.com", "digest")
	if err != nil {
		t.Fatalf("FindForSignIn error: %v", err)
	}
	if got.Status != models.AccountActive {
		t.Fatalf("unexpected status: %v", got.Status)
	}
}

func TestFindForSignIn_ClosedRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	closedAt := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows(userColumnNames).AddRow(
		"u-1", "jdoe@example.com", "digest", "1234567890", nil,
		nil, false, "closed", closedAt,
		false, nil, time.Now(),
		"jdoe",
	)
	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+users`).
		WithArgs("jdoe@example.com", "digest").
		WillReturnRows(rows)

	got, err := repo.FindForSignIn(context.Background(), "jdoe@example.com", "digest")
	if err != nil {
		t.Fatalf("FindForSignIn error: %v", err)
	}
	if !got.Closed() || got.ClosedAt == nil {
		t.Fatalf("expected closed user, got %+v", got)
	}
}

func TestCreate_ReturnsGeneratedID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+users\s*\(email,\s*password,\s*personal_id\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id`
	mock.ExpectQuery(q).
		WithArgs("jdoe@example.com", "digest", "1234567890").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-42"))

	id, err := repo.Create(context.Background(), &models.User{
		Email: "jdoe@example.com", Password: "digest", PersonalID: "1234567890",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if id != "u-42" {
		t.Fatalf("unexpected id: %q", id)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{
		Email: "jdoe@example.com", Password: "digest", PersonalID: "1234567890",
	})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate_UniqueViolationIsEmailConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_active_email_idx"})

	_, err := repo.Create(context.Background(), &models.User{
		Email: "jdoe@example.com", Password: "digest", PersonalID: "1234567890",
	})
	if !errors.Is(err, common.ErrorEmailTaken) {
		t.Fatalf("expected ErrorEmailTaken, got %v", err)
	}
}

func TestCreateProfile_UniqueViolationIsUsernameConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users_info`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_info_username_idx"})

	err := repo.CreateProfile(context.Background(), &models.Profile{UserID: "u-1", Username: "jdoe"})
	if !errors.Is(err, common.ErrorUsernameTaken) {
		t.Fatalf("expected ErrorUsernameTaken, got %v", err)
	}
}

func TestSoftDeleteAndReactivate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	closedAt := time.Now()
	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+status\s*=\s*'closed',\s*closed_at\s*=\s*\$2`).
		WithArgs("u-1", closedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+status\s*=\s*'active',\s*closed_at\s*=\s*NULL`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SoftDelete(context.Background(), "u-1", closedAt); err != nil {
		t.Fatalf("SoftDelete error: %v", err)
	}
	if err := repo.Reactivate(context.Background(), "u-1"); err != nil {
		t.Fatalf("Reactivate error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateProfile_OnlyProvidedFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE\s+users_info\s+SET\s+first_name\s*=\s*\$2,\s*github\s*=\s*\$3,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+user_id\s*=\s*\$1`
	mock.ExpectExec(q).
		WithArgs("u-1", "John", "github.com/jdoe").
		WillReturnResult(sqlmock.NewResult(0, 1))

	firstName, github := "John", "github.com/jdoe"
	err := repo.UpdateProfile(context.Background(), "u-1", validation.PersonalInformation{
		FirstName: &firstName,
		Github:    &github,
	})
	if err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateProfile_NothingToDo(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// no fields set, no query issued
	if err := repo.UpdateProfile(context.Background(), "u-1", validation.PersonalInformation{}); err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSecuritySettings(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	changedAt := time.Now().Add(-time.Hour)
	phone := "+12025550123"
	rows := sqlmock.NewRows([]string{"two_fa_enabled", "changed_email", "changed_password_at", "phone", "notify"}).
		AddRow(true, false, changedAt, phone, true)
	mock.ExpectQuery(`(?s)SELECT\s+two_fa\s+IS\s+NOT\s+NULL,\s*changed_email`).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.SecuritySettings(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("SecuritySettings error: %v", err)
	}
	if !got.TwoFaEnabled || got.ChangedEmail || got.Phone == nil || *got.Phone != phone || !got.Notify {
		t.Fatalf("unexpected settings: %+v", got)
	}
}
