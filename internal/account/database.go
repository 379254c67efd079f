package account

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// OpenDB opens a bun database for driver and dsn and pings it.
func OpenDB(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("account: open %s: %w", driver, err)
	}

	var db *bun.DB
	switch driver {
	case DriverSQLite:
		// every connection to :memory: is a separate database
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		_ = sqldb.Close()
		return nil, fmt.Errorf("account: unsupported driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("account: ping %s: %w", driver, err)
	}
	return db, nil
}
