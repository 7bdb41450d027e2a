// Package storagetest provides migrated throwaway databases for tests.
package storagetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/gophmail/internal/client/storage"
	"github.com/stretchr/testify/require"
)

// NewDB returns a migrated database in t.TempDir, closed on cleanup.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "mail.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// MustExec runs a statement and fails the test on error.
func MustExec(t *testing.T, db *sql.DB, query string, args ...any) sql.Result {
	t.Helper()
	res, err := db.Exec(query, args...)
	require.NoError(t, err)
	return res
}
