package keys

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/storage/storagetest"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, r *SQLiteRepository, email string) int64 {
	t.Helper()
	res, err := r.db.ExecContext(context.Background(), `
		INSERT INTO accounts (email, username, imap_host, imap_port, smtp_host, smtp_port, created_at)
		VALUES (?, ?, 'imap', 993, 'smtp', 465, CURRENT_TIMESTAMP)`, email, email)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestSave_Get_PrivateAndPublicOnly(t *testing.T) {
	r := NewSQLiteRepository(storagetest.NewDB(t))
	ctx := context.Background()
	acc := seedAccount(t, r, "alice@example.com")

	priv, err := r.Save(ctx, &models.KeyRecord{AccountID: acc, PublicKeyPEM: "PEM1", EncryptedPrivateKey: "AES|a|b", Salt: []byte("s")})
	require.NoError(t, err)
	pub, err := r.Save(ctx, &models.KeyRecord{AccountID: acc, PublicKeyPEM: "PEM2"})
	require.NoError(t, err)

	got, err := r.Get(ctx, priv.ID)
	require.NoError(t, err)
	assert.True(t, got.HasPrivateKey())
	assert.Equal(t, []byte("s"), got.Salt)

	got, err = r.Get(ctx, pub.ID)
	require.NoError(t, err)
	assert.False(t, got.HasPrivateKey())

	none, err := r.Get(ctx, 4242)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFindPrimary_LowestID(t *testing.T) {
	r := NewSQLiteRepository(storagetest.NewDB(t))
	ctx := context.Background()
	acc := seedAccount(t, r, "bob@example.com")

	none, err := r.FindPrimary(ctx, acc, false)
	require.NoError(t, err)
	require.Nil(t, none)

	first, err := r.Save(ctx, &models.KeyRecord{AccountID: acc, PublicKeyPEM: "pinned"})
	require.NoError(t, err)
	second, err := r.Save(ctx, &models.KeyRecord{AccountID: acc, PublicKeyPEM: "own", EncryptedPrivateKey: "x|y|z"})
	require.NoError(t, err)
	_, err = r.Save(ctx, &models.KeyRecord{AccountID: acc, PublicKeyPEM: "own2", EncryptedPrivateKey: "x|y|z"})
	require.NoError(t, err)

	p, err := r.FindPrimary(ctx, acc, false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, p.ID)

	p, err = r.FindPrimary(ctx, acc, true)
	require.NoError(t, err)
	assert.Equal(t, second.ID, p.ID)
}

func TestListings(t *testing.T) {
	r := NewSQLiteRepository(storagetest.NewDB(t))
	ctx := context.Background()
	a := seedAccount(t, r, "a@example.com")
	b := seedAccount(t, r, "b@example.com")

	_, err := r.Save(ctx, &models.KeyRecord{AccountID: a, PublicKeyPEM: "A1", EncryptedPrivateKey: "x|y|z"})
	require.NoError(t, err)
	_, err = r.Save(ctx, &models.KeyRecord{AccountID: b, PublicKeyPEM: "B1"})
	require.NoError(t, err)
	_, err = r.Save(ctx, &models.KeyRecord{AccountID: b, PublicKeyPEM: "B2", EncryptedPrivateKey: "x|y|z"})
	require.NoError(t, err)

	byB, err := r.ListByAccount(ctx, b)
	require.NoError(t, err)
	require.Len(t, byB, 2)
	assert.Equal(t, "B1", byB[0].PublicKeyPEM)

	withPriv, err := r.ListWithPrivateKey(ctx)
	require.NoError(t, err)
	require.Len(t, withPriv, 2)

	pub, err := r.FindPublicByEmail(ctx, "B@example.com")
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, "B1", pub.PublicKeyPEM)
}

func TestUpdatePrivateKey_AndDelete(t *testing.T) {
	r := NewSQLiteRepository(storagetest.NewDB(t))
	ctx := context.Background()
	acc := seedAccount(t, r, "c@example.com")

	k, err := r.Save(ctx, &models.KeyRecord{AccountID: acc, PublicKeyPEM: "P", EncryptedPrivateKey: "old|a|b", Salt: []byte("old")})
	require.NoError(t, err)

	assert.Equal(t, common.DefaultKDFIterations, k.Iterations)

	require.NoError(t, r.UpdatePrivateKey(ctx, k.ID, []byte("new"), "new|a|b", 1000))
	require.ErrorIs(t, r.UpdatePrivateKey(ctx, 999, nil, "", 1000), common.ErrNotFound)

	got, err := r.Get(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "new|a|b", got.EncryptedPrivateKey)
	assert.Equal(t, []byte("new"), got.Salt)
	assert.Equal(t, 1000, got.Iterations)

	require.NoError(t, r.Delete(ctx, k.ID))
	got, err = r.Get(ctx, k.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
