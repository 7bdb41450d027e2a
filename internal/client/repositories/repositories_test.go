package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WithTx_CommitAndRollback(t *testing.T) {
	store := NewStore(storagetest.NewDB(t))
	ctx := context.Background()

	err := store.WithTx(ctx, func(ctx context.Context, r *Repositories) error {
		_, err := r.Accounts.Save(ctx, &models.Account{Email: "keep@example.com", Username: "k", IMAPHost: "i", IMAPPort: 1, SMTPHost: "s", SMTPPort: 2, Security: models.SecurityTLS})
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithTx(ctx, func(ctx context.Context, r *Repositories) error {
		if _, err := r.Accounts.Save(ctx, &models.Account{Email: "drop@example.com", Username: "d", IMAPHost: "i", IMAPPort: 1, SMTPHost: "s", SMTPPort: 2, Security: models.SecurityTLS}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := store.Repos().Accounts.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep@example.com", list[0].Email)
}
