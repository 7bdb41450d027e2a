package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/dbx"
	"github.com/dmitrijs2005/gophmail/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, k *models.PublicKey) (*models.PublicKey, error) {
	query :=
		`INSERT INTO public_keys (email, public_key_pem, verified)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, k.Email, k.PublicKeyPEM, k.Verified).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return k, nil
}

const selectColumns = `SELECT id, email, public_key_pem, verified, created_at, verified_at FROM public_keys`

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(s scanner) (*models.PublicKey, error) {
	k := &models.PublicKey{}
	var verifiedAt sql.NullTime
	if err := s.Scan(&k.ID, &k.Email, &k.PublicKeyPEM, &k.Verified, &k.CreatedAt, &verifiedAt); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		k.VerifiedAt = verifiedAt.Time
	}
	return k, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.PublicKey, error) {
	k, err := scanKey(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NotFoundf("key %d", id)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

func (r *PostgresRepository) ListByEmail(ctx context.Context, email string, verifiedOnly bool) ([]*models.PublicKey, error) {
	query := selectColumns + ` WHERE email = $1 AND (verified OR NOT $2) ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, email, verifiedOnly)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.PublicKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	query :=
		`UPDATE public_keys SET verified = TRUE, verified_at = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.NotFoundf("key %d", id)
	}
	return nil
}
