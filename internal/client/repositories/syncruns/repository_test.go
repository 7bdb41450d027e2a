package syncruns

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndList_NewestFirst(t *testing.T) {
	db := storagetest.NewDB(t)
	storagetest.MustExec(t, db, `
		INSERT INTO accounts (id, email, username, imap_host, imap_port, smtp_host, smtp_port, created_at)
		VALUES (1, 'a@example.com', 'a', 'imap', 993, 'smtp', 465, CURRENT_TIMESTAMP)`)

	r := NewSQLiteRepository(db)
	ctx := context.Background()
	start := time.Now()

	for i := 0; i < 3; i++ {
		_, err := r.Save(ctx, &models.SyncRun{
			AccountID:  1,
			StartedAt:  start,
			FinishedAt: start.Add(time.Second),
			Success:    i != 1,
			Fetched:    i,
			Details:    "ok",
		})
		require.NoError(t, err)
	}

	runs, err := r.ListByAccount(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Fetched)
	assert.False(t, runs[1].Success)

	all, err := r.ListByAccount(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
