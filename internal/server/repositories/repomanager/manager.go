// Package repomanager hands out key repositories bound to a database handle
// and owns the schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophmail/internal/dbx"
	"github.com/dmitrijs2005/gophmail/internal/server/repositories/keys"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Keys(db dbx.DBTX) keys.Repository
}
