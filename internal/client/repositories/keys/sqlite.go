package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/dbx"
)

const selectColumns = `SELECT k.id, k.account_id, k.public_key_pem, k.encrypted_private_key, k.salt, k.kdf_iterations, k.created_at FROM keys k`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(s scanner) (*models.KeyRecord, error) {
	var (
		k    models.KeyRecord
		priv sql.NullString
	)
	if err := s.Scan(&k.ID, &k.AccountID, &k.PublicKeyPEM, &priv, &k.Salt, &k.Iterations, &k.CreatedAt); err != nil {
		return nil, err
	}
	k.EncryptedPrivateKey = priv.String
	return &k, nil
}

func (r *SQLiteRepository) queryOne(ctx context.Context, what string, query string, args ...any) (*models.KeyRecord, error) {
	k, err := scanKey(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return k, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.KeyRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var result []*models.KeyRecord
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, k *models.KeyRecord) (*models.KeyRecord, error) {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	if k.Iterations <= 0 {
		k.Iterations = common.DefaultKDFIterations
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO keys (account_id, public_key_pem, encrypted_private_key, salt, kdf_iterations, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		k.AccountID, k.PublicKeyPEM, dbx.NullString(k.EncryptedPrivateKey), k.Salt, k.Iterations, k.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert key for account[%d]: %w", k.AccountID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read key id: %w", err)
	}
	k.ID = id
	return k, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.KeyRecord, error) {
	return r.queryOne(ctx, fmt.Sprintf("key[%d]", id), selectColumns+` WHERE k.id = ?`, id)
}

func (r *SQLiteRepository) FindPrimary(ctx context.Context, accountID int64, privateOnly bool) (*models.KeyRecord, error) {
	q := selectColumns + ` WHERE k.account_id = ?`
	if privateOnly {
		q += ` AND k.encrypted_private_key IS NOT NULL`
	}
	q += ` ORDER BY k.id LIMIT 1`
	return r.queryOne(ctx, fmt.Sprintf("primary key of account[%d]", accountID), q, accountID)
}

func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.KeyRecord, error) {
	return r.queryMany(ctx, selectColumns+` WHERE k.account_id = ? ORDER BY k.id`, accountID)
}

func (r *SQLiteRepository) ListWithPrivateKey(ctx context.Context) ([]*models.KeyRecord, error) {
	return r.queryMany(ctx, selectColumns+` WHERE k.encrypted_private_key IS NOT NULL ORDER BY k.id`)
}

func (r *SQLiteRepository) FindPublicByEmail(ctx context.Context, email string) (*models.KeyRecord, error) {
	return r.queryOne(ctx, "key of "+email,
		selectColumns+` JOIN accounts a ON a.id = k.account_id WHERE a.email = ? ORDER BY k.id LIMIT 1`, email)
}

func (r *SQLiteRepository) UpdatePrivateKey(ctx context.Context, id int64, salt []byte, blob string, iterations int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE keys SET salt = ?, encrypted_private_key = ?, kdf_iterations = ? WHERE id = ?`,
		salt, dbx.NullString(blob), iterations, id)
	if err != nil {
		return fmt.Errorf("failed to update key[%d]: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("key %d", id)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM keys WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete key[%d]: %w", id, err)
	}
	return nil
}
