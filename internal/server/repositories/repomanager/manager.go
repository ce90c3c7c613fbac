package repomanager

import (
	"context"
	"database/sql"

	"github.com/barklabs/barkbot/internal/dbx"
	"github.com/barklabs/barkbot/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can hand repositories either the pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
