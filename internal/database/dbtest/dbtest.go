// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"tailorshop/m/internal/database"
	"tailorshop/m/internal/migrations"
	"tailorshop/m/internal/seed"
)

// New returns a fresh database with the schema and default groups in place.
// It is closed when the test ends.
func New(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, migrations.Run(ctx, db))
	require.NoError(t, seed.Groups(ctx, db))
	return db
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}
