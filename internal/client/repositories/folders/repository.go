package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/dbx"
)

type Repository interface {
	// Save inserts a new folder; an existing (account, server name) pair is a
	// validation error.
	Save(ctx context.Context, f *models.Folder) (*models.Folder, error)
	Get(ctx context.Context, id int64) (*models.Folder, error)
	FindByName(ctx context.Context, accountID int64, serverName string) (*models.Folder, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*models.Folder, error)
	// AdvanceCursor moves last_sync_uid to max(current, uid). It never lowers it.
	AdvanceCursor(ctx context.Context, folderID int64, uid uint64) error
	Delete(ctx context.Context, id int64) error
}

const selectColumns = `SELECT id, account_id, server_name, local_name, last_sync_uid FROM folders`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Folder, error) {
	var (
		f   models.Folder
		uid sql.NullInt64
	)
	if err := s.Scan(&f.ID, &f.AccountID, &f.ServerName, &f.LocalName, &uid); err != nil {
		return nil, err
	}
	if uid.Valid && uid.Int64 > 0 {
		f.LastSyncUID = uint64(uid.Int64)
	}
	return &f, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, f *models.Folder) (*models.Folder, error) {
	if f.LocalName == "" {
		f.LocalName = f.ServerName
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO folders (account_id, server_name, local_name, last_sync_uid) VALUES (?, ?, ?, ?)`,
		f.AccountID, f.ServerName, f.LocalName, dbx.NullInt64(int64(f.LastSyncUID)))
	if dbx.IsUniqueViolation(err) {
		return nil, common.Validationf("folder %q already exists for account %d", f.ServerName, f.AccountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert folder %q: %w", f.ServerName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read folder id: %w", err)
	}
	f.ID = id
	return f, nil
}

func (r *SQLiteRepository) one(ctx context.Context, what, query string, args ...any) (*models.Folder, error) {
	f, err := scan(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder %s: %w", what, err)
	}
	return f, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Folder, error) {
	return r.one(ctx, fmt.Sprint(id), selectColumns+` WHERE id = ?`, id)
}

func (r *SQLiteRepository) FindByName(ctx context.Context, accountID int64, serverName string) (*models.Folder, error) {
	return r.one(ctx, serverName, selectColumns+` WHERE account_id = ? AND server_name = ?`, accountID, serverName)
}

func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.Folder, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders of account[%d]: %w", accountID, err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		f, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folder rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) AdvanceCursor(ctx context.Context, folderID int64, uid uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE folders SET last_sync_uid = MAX(COALESCE(last_sync_uid, 0), ?) WHERE id = ?`,
		int64(uid), folderID)
	if err != nil {
		return fmt.Errorf("failed to advance cursor of folder[%d]: %w", folderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("folder %d", folderID)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete folder[%d]: %w", id, err)
	}
	return nil
}
