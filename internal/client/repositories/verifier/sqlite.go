package verifier

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

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context) (*models.MasterPasswordVerifier, error) {
	var v models.MasterPasswordVerifier
	err := r.db.QueryRowContext(ctx,
		`SELECT salt, verifier_hash, iterations, created_at, updated_at FROM master_password WHERE id = 1`,
	).Scan(&v.Salt, &v.Hash, &v.Iterations, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verifier: %w", err)
	}
	return &v, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, v *models.MasterPasswordVerifier) error {
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO master_password (id, salt, verifier_hash, iterations, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)`,
		v.Salt, v.Hash, v.Iterations, v.CreatedAt, v.UpdatedAt)
	if dbx.IsUniqueViolation(err) {
		return common.ErrAlreadyInitialized
	}
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, v *models.MasterPasswordVerifier) error {
	v.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE master_password SET salt = ?, verifier_hash = ?, iterations = ?, updated_at = ?
		WHERE id = 1`,
		v.Salt, v.Hash, v.Iterations, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update verifier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotInitialized
	}
	return nil
}
