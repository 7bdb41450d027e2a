package accounts

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

const selectColumns = `SELECT id, email, display_name, username, imap_host, imap_port, smtp_host, smtp_port,
	security, cred_salt, cred_blob, cred_iterations, created_at FROM accounts`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	var (
		a        models.Account
		security string
		blob     sql.NullString
	)
	if err := s.Scan(&a.ID, &a.Email, &a.DisplayName, &a.Username, &a.IMAPHost, &a.IMAPPort,
		&a.SMTPHost, &a.SMTPPort, &security, &a.CredentialSalt, &blob, &a.CredentialIterations, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Security = models.Security(security)
	a.CredentialBlob = blob.String
	return &a, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.CredentialIterations <= 0 {
		a.CredentialIterations = common.DefaultKDFIterations
	}
	if a.ID == 0 {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO accounts (email, display_name, username, imap_host, imap_port, smtp_host, smtp_port,
				security, cred_salt, cred_blob, cred_iterations, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.Email, a.DisplayName, a.Username, a.IMAPHost, a.IMAPPort, a.SMTPHost, a.SMTPPort,
			string(a.Security), a.CredentialSalt, dbx.NullString(a.CredentialBlob), a.CredentialIterations, a.CreatedAt)
		if dbx.IsUniqueViolation(err) {
			return nil, common.Validationf("account %s already exists", a.Email)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert account %s: %w", a.Email, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read account id: %w", err)
		}
		a.ID = id
		return a, nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET email = ?, display_name = ?, username = ?, imap_host = ?, imap_port = ?,
			smtp_host = ?, smtp_port = ?, security = ?, cred_salt = ?, cred_blob = ?, cred_iterations = ?
		WHERE id = ?`,
		a.Email, a.DisplayName, a.Username, a.IMAPHost, a.IMAPPort, a.SMTPHost, a.SMTPPort,
		string(a.Security), a.CredentialSalt, dbx.NullString(a.CredentialBlob), a.CredentialIterations, a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update account[%d]: %w", a.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, common.NotFoundf("account %d", a.ID)
	}
	return a, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account[%d]: %w", id, err)
	}
	return a, nil
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, selectColumns+` WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account %s: %w", email, err)
	}
	return a, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateCredential(ctx context.Context, id int64, salt []byte, blob string, iterations int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET cred_salt = ?, cred_blob = ?, cred_iterations = ? WHERE id = ?`,
		salt, dbx.NullString(blob), iterations, id)
	if err != nil {
		return fmt.Errorf("failed to update credential of account[%d]: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("account %d", id)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete account[%d]: %w", id, err)
	}
	return nil
}
