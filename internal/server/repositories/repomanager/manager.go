package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/dairykeeper/internal/dbx"
	"github.com/dmitrijs2005/dairykeeper/internal/server/repositories/grants"
	"github.com/dmitrijs2005/dairykeeper/internal/server/repositories/offers"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Offers(db dbx.DBTX) offers.Repository
	Grants(db dbx.DBTX) grants.Repository
}
