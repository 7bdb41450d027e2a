package syncruns

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/dbx"
)

// Repository keeps the history of account synchronizations.
type Repository interface {
	Save(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error)
	// ListByAccount returns up to limit runs, newest first.
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.SyncRun, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (account_id, started_at, finished_at, success, fetched, failed, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.AccountID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Success, run.Fetched, run.Failed, run.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sync run of account[%d]: %w", run.AccountID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read sync run id: %w", err)
	}
	run.ID = id
	return run, nil
}

func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, started_at, finished_at, success, fetched, failed, details
		FROM sync_runs WHERE account_id = ? ORDER BY id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs of account[%d]: %w", accountID, err)
	}
	defer rows.Close()

	var result []*models.SyncRun
	for rows.Next() {
		var s models.SyncRun
		if err := rows.Scan(&s.ID, &s.AccountID, &s.StartedAt, &s.FinishedAt, &s.Success, &s.Fetched, &s.Failed, &s.Details); err != nil {
			return nil, fmt.Errorf("failed to scan sync run row: %w", err)
		}
		result = append(result, &s)
	}
	return result, rows.Err()
}
