package repomanager

import (
	"context"
	"database/sql"

	"github.com/mikhailbahdashych/identity-core/internal/dbx"
	"github.com/mikhailbahdashych/identity-core/internal/server/repositories/sessiontokens"
	"github.com/mikhailbahdashych/identity-core/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// several repository calls against one transaction handle.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	SessionTokens(db dbx.DBTX) sessiontokens.Repository
}
