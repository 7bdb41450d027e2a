package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/mail.db")
	assert.Contains(t, dsn, "file:/tmp/mail.db?")
	assert.Contains(t, dsn, "journal_mode%28WAL%29")
	assert.Contains(t, dsn, "foreign_keys%28ON%29")

	assert.Equal(t, ":memory:", DSN(":memory:"))
	assert.Equal(t, "file:x?mode=memory", DSN("file:x?mode=memory"))
}

func TestInitDatabase_CreatesSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := InitDatabase(ctx, filepath.Join(t.TempDir(), "mail.db"))
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{
		"goose_db_version", "master_password", "accounts", "keys", "folders",
		"messages", "message_wrapped_keys", "attachments", "sync_runs",
	} {
		assert.True(t, tableExists(t, db, table), table)
	}

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := InitDatabase(ctx, filepath.Join(t.TempDir(), "mail.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
}

func TestInitDatabase_BadPath(t *testing.T) {
	_, err := InitDatabase(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "mail.db"))
	require.Error(t, err)
}
