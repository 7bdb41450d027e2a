package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/cryptox"
	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/dmitrijs2005/gophmail/internal/keydirectory"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadRecorder struct {
	keydirectory.Directory
	email, pem string
	err        error
}

func (u *uploadRecorder) UploadPublicKey(ctx context.Context, email, pem string) (*keydirectory.PublicKeyRecord, error) {
	u.email, u.pem = email, pem
	if u.err != nil {
		return nil, u.err
	}
	return &keydirectory.PublicKeyRecord{Email: email, PublicKeyPEM: pem}, nil
}

func TestKeyVault_GenerateAndDecrypt(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	acc := e.addAccount(t, "alice@example.com")

	meta := e.addKey(t, acc.ID)
	assert.True(t, meta.HasPrivate)
	assert.Equal(t, acc.ID, meta.AccountID)

	pub, err := cryptox.ParsePublicKeyPEM(meta.PublicKeyPEM)
	require.NoError(t, err)

	der, err := e.vault.DecryptPrivateKey(ctx, meta.ID, masterPassword)
	require.NoError(t, err)
	priv, err := cryptox.ParsePrivateKey(der)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))

	created := events.OfKind[events.KeyCreated](e.rec)
	require.Len(t, created, 1)
	assert.Equal(t, meta.ID, created[0].KeyID)
	assert.Equal(t, acc.ID, created[0].AccountID)

	rec, err := e.store.Repos().Keys.Get(ctx, meta.ID)
	require.NoError(t, err)
	blob, err := cryptox.DecodeBlob(rec.EncryptedPrivateKey)
	require.NoError(t, err)
	assert.Equal(t, cryptox.AlgAESGCM, blob.Algorithm)
	assert.Len(t, rec.Salt, common.SaltSize)
}

func TestKeyVault_Errors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)

	_, err := e.vault.GenerateKeyPair(ctx, 42, masterPassword)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = e.vault.DecryptPrivateKey(ctx, 42, masterPassword)
	assert.ErrorIs(t, err, common.ErrNotFound)

	acc := e.addAccount(t, "alice@example.com")
	meta := e.addKey(t, acc.ID)
	_, err = e.vault.DecryptPrivateKey(ctx, meta.ID, []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrCrypto)

	_, err = e.vault.ImportPublicKey(ctx, acc.ID, "not a pem")
	assert.Error(t, err)
}

func TestKeyVault_ImportPublicKey(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")
	bob := e.addAccount(t, "bob@example.com")
	bobKey := e.addKey(t, bob.ID)

	imported, err := e.vault.ImportPublicKey(ctx, alice.ID, bobKey.PublicKeyPEM)
	require.NoError(t, err)
	assert.False(t, imported.HasPrivate)

	_, err = e.vault.DecryptPrivateKey(ctx, imported.ID, masterPassword)
	assert.ErrorIs(t, err, common.ErrNotFound)

	keys, err := e.vault.ListKeys(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, imported.ID, keys[0].ID)

	primary, err := e.vault.FindPrimary(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, imported.ID, primary.ID)

	primary, err = e.vault.FindPrimary(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, primary)
}

func TestKeyVault_PublishPrimaryKey(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	acc := e.addAccount(t, "alice@example.com")

	up := &uploadRecorder{}
	vault := NewKeyVaultService(e.store.Repos(), up, testIterations, e.rec, logging.NewNopLogger())

	err := vault.PublishPrimaryKey(ctx, acc.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	meta := e.addKey(t, acc.ID)
	require.NoError(t, vault.PublishPrimaryKey(ctx, acc.ID))
	assert.Equal(t, "alice@example.com", up.email)
	assert.Equal(t, meta.PublicKeyPEM, up.pem)

	noDir := NewKeyVaultService(e.store.Repos(), nil, testIterations, e.rec, logging.NewNopLogger())
	assert.ErrorIs(t, noDir.PublishPrimaryKey(ctx, acc.ID), common.ErrValidation)
}
