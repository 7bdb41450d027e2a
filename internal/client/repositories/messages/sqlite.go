package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/dbx"
)

const selectColumns = `SELECT id, account_id, folder_id, server_uid, message_id, subject, sender, recipients, cc,
	sent_at, is_seen, is_deleted, is_encrypted, has_attachments, body_text, body_html, body_blob, signature, created_at
	FROM messages`

const listSep = ","

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

func scanMessage(s scanner) (*models.Message, error) {
	var (
		m          models.Message
		uid        sql.NullInt64
		recipients string
		cc         string
		sentAt     sql.NullTime
		blob       sql.NullString
	)
	if err := s.Scan(&m.ID, &m.AccountID, &m.FolderID, &uid, &m.MessageID, &m.Subject, &m.Sender,
		&recipients, &cc, &sentAt, &m.IsSeen, &m.IsDeleted, &m.IsEncrypted, &m.HasAttachments,
		&m.BodyText, &m.BodyHTML, &blob, &m.Signature, &m.CreatedAt); err != nil {
		return nil, err
	}
	if uid.Valid {
		m.ServerUID = uint64(uid.Int64)
	}
	m.Recipients = splitList(recipients)
	m.Cc = splitList(cc)
	if sentAt.Valid {
		m.SentAt = sentAt.Time
	}
	m.BodyBlob = blob.String
	return &m, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, m *models.Message) (*models.Message, error) {
	args := []any{
		m.AccountID, m.FolderID, dbx.NullInt64(int64(m.ServerUID)), m.MessageID, m.Subject, m.Sender,
		strings.Join(m.Recipients, listSep), strings.Join(m.Cc, listSep), dbx.NullTime(m.SentAt),
		m.IsSeen, m.IsDeleted, m.IsEncrypted, m.HasAttachments, m.BodyText, m.BodyHTML,
		dbx.NullString(m.BodyBlob), m.Signature,
	}

	if m.ID == 0 {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO messages (account_id, folder_id, server_uid, message_id, subject, sender, recipients, cc,
				sent_at, is_seen, is_deleted, is_encrypted, has_attachments, body_text, body_html, body_blob,
				signature, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			append(args, m.CreatedAt)...)
		if dbx.IsUniqueViolation(err) {
			return nil, common.Validationf("message uid %d already stored for account %d", m.ServerUID, m.AccountID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert message: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read message id: %w", err)
		}
		m.ID = id
		return m, nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET account_id = ?, folder_id = ?, server_uid = ?, message_id = ?, subject = ?, sender = ?,
			recipients = ?, cc = ?, sent_at = ?, is_seen = ?, is_deleted = ?, is_encrypted = ?, has_attachments = ?,
			body_text = ?, body_html = ?, body_blob = ?, signature = ?
		WHERE id = ?`,
		append(args, m.ID)...)
	if err != nil {
		return nil, fmt.Errorf("failed to update message[%d]: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, common.NotFoundf("message %d", m.ID)
	}
	return m, nil
}

func (r *SQLiteRepository) one(ctx context.Context, what, query string, args ...any) (*models.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", what, err)
	}
	return m, nil
}

func (r *SQLiteRepository) many(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Message, error) {
	return r.one(ctx, fmt.Sprint(id), selectColumns+` WHERE id = ?`, id)
}

func (r *SQLiteRepository) FindByServerUID(ctx context.Context, accountID int64, uid uint64) (*models.Message, error) {
	return r.one(ctx, fmt.Sprintf("uid %d", uid), selectColumns+` WHERE account_id = ? AND server_uid = ?`, accountID, int64(uid))
}

func (r *SQLiteRepository) ListByFolder(ctx context.Context, folderID int64) ([]*models.Message, error) {
	return r.many(ctx, selectColumns+` WHERE folder_id = ? AND is_deleted = 0 ORDER BY sent_at DESC, id DESC`, folderID)
}

func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.Message, error) {
	return r.many(ctx, selectColumns+` WHERE account_id = ? ORDER BY id`, accountID)
}

func (r *SQLiteRepository) exec(ctx context.Context, id int64, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s message[%d]: %w", what, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("message %d", id)
	}
	return nil
}

func (r *SQLiteRepository) SetSeen(ctx context.Context, id int64, seen bool) error {
	return r.exec(ctx, id, "mark", `UPDATE messages SET is_seen = ? WHERE id = ?`, seen, id)
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id int64) error {
	return r.exec(ctx, id, "soft-delete", `UPDATE messages SET is_deleted = 1 WHERE id = ?`, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete message[%d]: %w", id, err)
	}
	return nil
}
