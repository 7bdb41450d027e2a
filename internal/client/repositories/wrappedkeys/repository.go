package wrappedkeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/dbx"
)

type Repository interface {
	Save(ctx context.Context, w *models.WrappedMessageKey) (*models.WrappedMessageKey, error)
	// Find returns the row for (messageID, email), or (nil, nil).
	Find(ctx context.Context, messageID int64, email string) (*models.WrappedMessageKey, error)
	// FindAny returns the lowest-id row of the message, or (nil, nil).
	FindAny(ctx context.Context, messageID int64) (*models.WrappedMessageKey, error)
	ListByMessage(ctx context.Context, messageID int64) ([]*models.WrappedMessageKey, error)
	DeleteByMessage(ctx context.Context, messageID int64) error
}

const selectColumns = `SELECT id, message_id, recipient_email, wrapped_key_blob, created_at FROM message_wrapped_keys`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.WrappedMessageKey, error) {
	var w models.WrappedMessageKey
	if err := s.Scan(&w.ID, &w.MessageID, &w.RecipientEmail, &w.WrappedKeyBlob, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, w *models.WrappedMessageKey) (*models.WrappedMessageKey, error) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO message_wrapped_keys (message_id, recipient_email, wrapped_key_blob, created_at)
		VALUES (?, ?, ?, ?)`,
		w.MessageID, w.RecipientEmail, w.WrappedKeyBlob, w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wrapped key message[%d] %s: %w", w.MessageID, w.RecipientEmail, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read wrapped key id: %w", err)
	}
	w.ID = id
	return w, nil
}

func (r *SQLiteRepository) Find(ctx context.Context, messageID int64, email string) (*models.WrappedMessageKey, error) {
	w, err := scan(r.db.QueryRowContext(ctx, selectColumns+` WHERE message_id = ? AND recipient_email = ?`, messageID, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wrapped key message[%d] %s: %w", messageID, email, err)
	}
	return w, nil
}

func (r *SQLiteRepository) FindAny(ctx context.Context, messageID int64) (*models.WrappedMessageKey, error) {
	w, err := scan(r.db.QueryRowContext(ctx, selectColumns+` WHERE message_id = ? ORDER BY id LIMIT 1`, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wrapped key message[%d]: %w", messageID, err)
	}
	return w, nil
}

func (r *SQLiteRepository) ListByMessage(ctx context.Context, messageID int64) ([]*models.WrappedMessageKey, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE message_id = ? ORDER BY id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wrapped keys message[%d]: %w", messageID, err)
	}
	defer rows.Close()

	var result []*models.WrappedMessageKey
	for rows.Next() {
		w, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wrapped key row: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) DeleteByMessage(ctx context.Context, messageID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM message_wrapped_keys WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("failed to delete wrapped keys message[%d]: %w", messageID, err)
	}
	return nil
}
