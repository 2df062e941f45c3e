package database

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Connect opens a database for the given driver ("sqlite" or "pgx").
// SQLite connections always run with foreign keys enforced.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	if driver == "sqlite" {
		dsn = withForeignKeys(dsn)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}
	if driver != "sqlite" {
		db.SetMaxOpenConns(10)
		return db, nil
	}

	// One connection keeps in-memory databases alive for the pool's lifetime.
	db.SetMaxOpenConns(1)
	var enabled int
	if err := db.Get(&enabled, `PRAGMA foreign_keys`); err != nil {
		db.Close()
		return nil, fmt.Errorf("check sqlite foreign keys: %w", err)
	}
	if enabled != 1 {
		db.Close()
		return nil, fmt.Errorf("sqlite foreign keys are disabled by DSN %q", dsn)
	}
	return db, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}
