package cryptox

import (
	"testing"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlob_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		blob EncryptedBlob
	}{
		{"full", EncryptedBlob{Algorithm: AlgAESGCM, IV: []byte{1, 2, 3}, Ciphertext: []byte("ciphertext")}},
		{"empty iv", EncryptedBlob{Algorithm: AlgDESECB, IV: []byte{}, Ciphertext: []byte{9, 8, 7}}},
		{"empty ct", EncryptedBlob{Algorithm: AlgAESGCM, IV: []byte{1}, Ciphertext: []byte{}}},
		{"both empty", EncryptedBlob{Algorithm: AlgRSA, IV: []byte{}, Ciphertext: []byte{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBlob(tt.blob.Encode())
			require.NoError(t, err)
			assert.Equal(t, tt.blob.Algorithm, got.Algorithm)
			assert.Equal(t, tt.blob.IV, got.IV)
			assert.Equal(t, tt.blob.Ciphertext, got.Ciphertext)
		})
	}
}

func TestBlob_EncodeExactFormat(t *testing.T) {
	b := EncryptedBlob{Algorithm: AlgAESGCM, IV: []byte("abc"), Ciphertext: []byte("hi")}
	assert.Equal(t, "AES/GCM/NoPadding|YWJj|aGk=", b.Encode())

	empty := EncryptedBlob{Algorithm: AlgDESECB}
	assert.Equal(t, "DES/ECB/PKCS5Padding||", empty.Encode())
}

func TestDecodeBlob_Rejects(t *testing.T) {
	for _, in := range []string{"", "AES/GCM/NoPadding", "AES|YWJj", "AES|!!|YWJj", "AES|YWJj|%%"} {
		_, err := DecodeBlob(in)
		assert.ErrorIs(t, err, common.ErrValidation, in)
	}
}
