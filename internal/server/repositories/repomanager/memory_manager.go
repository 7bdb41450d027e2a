package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophmail/internal/dbx"
	"github.com/dmitrijs2005/gophmail/internal/server/repositories/keys"
)

// MemoryRepositoryManager serves a single in-memory repository regardless of
// the handle passed in. Migrations are a no-op.
type MemoryRepositoryManager struct {
	keys *keys.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{keys: keys.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Keys(dbx.DBTX) keys.Repository { return m.keys }
