// Package repositories groups the SQLite repositories of the local store and
// lets services run several of them inside one transaction.
//
// Every repository is constructed over a dbx.DBTX, so the same code works on
// the pooled *sql.DB and on a *sql.Tx:
//
//	err := store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
//	    if _, err := r.Messages.Save(ctx, msg); err != nil {
//	        return err
//	    }
//	    return r.Folders.AdvanceCursor(ctx, folder.ID, msg.ServerUID)
//	})
//
// Optional lookups (Get, Find*) return (nil, nil) when nothing matches;
// services translate that into common.ErrNotFound where it is an error.
package repositories

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophmail/internal/client/repositories/accounts"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories/folders"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories/keys"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories/messages"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories/syncruns"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories/verifier"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories/wrappedkeys"
	"github.com/dmitrijs2005/gophmail/internal/dbx"
)

type Repositories struct {
	Verifier    verifier.Repository
	Accounts    accounts.Repository
	Keys        keys.Repository
	WrappedKeys wrappedkeys.Repository
	Folders     folders.Repository
	Messages    messages.Repository
	Attachments attachments.Repository
	SyncRuns    syncruns.Repository
}

// New binds every repository to db.
func New(db dbx.DBTX) *Repositories {
	return &Repositories{
		Verifier:    verifier.NewSQLiteRepository(db),
		Accounts:    accounts.NewSQLiteRepository(db),
		Keys:        keys.NewSQLiteRepository(db),
		WrappedKeys: wrappedkeys.NewSQLiteRepository(db),
		Folders:     folders.NewSQLiteRepository(db),
		Messages:    messages.NewSQLiteRepository(db),
		Attachments: attachments.NewSQLiteRepository(db),
		SyncRuns:    syncruns.NewSQLiteRepository(db),
	}
}

// Store owns the database handle and hands out repositories bound either to
// the pool or to a transaction.
type Store struct {
	db    *sql.DB
	repos *Repositories
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, repos: New(db)}
}

// Repos returns repositories bound to the connection pool.
func (s *Store) Repos() *Repositories { return s.repos }

// WithTx runs fn with repositories bound to a single transaction. The
// transaction commits only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, New(tx))
	})
}

func (s *Store) Close() error { return s.db.Close() }
