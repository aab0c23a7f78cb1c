package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/berboapp/internal/dbx"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/events"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/roles"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/users"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/verifications"
)

// RepositoryManager vends repositories bound to a DBTX so the same service
// code runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Roles(db dbx.DBTX) roles.Repository
	Verifications(db dbx.DBTX) verifications.Repository
	Events(db dbx.DBTX) events.Repository
}
