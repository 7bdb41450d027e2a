package attachments

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

func TestFSStore_RoundTrip(t *testing.T) {
	s, err := NewFSStore(filepath.Join(t.TempDir(), "att"))
	require.NoError(t, err)
	ctx := context.Background()

	key := NewStorageKey(42)
	require.NoError(t, s.Put(ctx, key, []byte("payload")))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))

	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFSStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put(context.Background(), "../outside", []byte("x"))
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = s.Get(context.Background(), "../outside")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestNewStorageKey(t *testing.T) {
	k1 := NewStorageKey(7)
	k2 := NewStorageKey(7)
	assert.True(t, strings.HasPrefix(k1, "accounts/7/"))
	assert.NotEqual(t, k1, k2)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "", t.TempDir(), S3Config{})
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, s)

	_, err = Open(context.Background(), "tape", "", S3Config{})
	require.Error(t, err)

	_, err = Open(context.Background(), BackendS3, "", S3Config{})
	require.ErrorIs(t, err, common.ErrValidation)
}
