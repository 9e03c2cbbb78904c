package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gymbridge/internal/dbx"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/assignments"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/identities"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/mirror"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/syncstate"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Mirror(db dbx.DBTX) mirror.Repository
	Identities(db dbx.DBTX) identities.Repository
	SyncStates(db dbx.DBTX) syncstate.Store
	Assignments(db dbx.DBTX) assignments.Repository
}
