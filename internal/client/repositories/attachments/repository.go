package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/dbx"
)

type Repository interface {
	Save(ctx context.Context, a *models.Attachment) (*models.Attachment, error)
	Get(ctx context.Context, id int64) (*models.Attachment, error)
	ListByMessage(ctx context.Context, messageID int64) ([]*models.Attachment, error)
	// ListStorageKeysByAccount returns the blob keys of every stored
	// attachment of the account.
	ListStorageKeysByAccount(ctx context.Context, accountID int64) ([]string, error)
}

const selectColumns = `SELECT id, message_id, file_name, content_type, size, part_index, storage_key FROM attachments`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Attachment, error) {
	var a models.Attachment
	if err := s.Scan(&a.ID, &a.MessageID, &a.FileName, &a.ContentType, &a.Size, &a.PartIndex, &a.StorageKey); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attachments (message_id, file_name, content_type, size, part_index, storage_key)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.MessageID, a.FileName, a.ContentType, a.Size, a.PartIndex, a.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to insert attachment %q: %w", a.FileName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment id: %w", err)
	}
	a.ID = id
	return a, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Attachment, error) {
	a, err := scan(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment[%d]: %w", id, err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListByMessage(ctx context.Context, messageID int64) ([]*models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE message_id = ? ORDER BY part_index, id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments message[%d]: %w", messageID, err)
	}
	defer rows.Close()

	var result []*models.Attachment
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) ListStorageKeysByAccount(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.storage_key FROM attachments a
		JOIN messages m ON m.id = a.message_id
		WHERE m.account_id = ? AND a.storage_key <> ''
		ORDER BY a.id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachment keys account[%d]: %w", accountID, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan attachment key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
