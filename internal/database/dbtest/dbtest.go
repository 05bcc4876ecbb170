// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"procurement/internal/config"
	"procurement/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Open returns a fresh in-memory sqlite database with every workflow table migrated.
// The pool holds a single connection, so concurrent transactions run one after another.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewConnection(config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     ":memory:",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
