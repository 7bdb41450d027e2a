package cryptox

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt, 1000)
	key2 := DeriveKey(password, salt, 1000)

	require.Len(t, key1, KeySize)
	require.True(t, bytes.Equal(key1, key2))
}

func TestDeriveKey_KnownVector(t *testing.T) {
	// PBKDF2-HMAC-SHA256("passwd", "salt", 1), first 32 bytes.
	key := DeriveKey([]byte("passwd"), []byte("salt"), 1)
	assert.Equal(t, "55ac046e56e3089fec1691c22544b605f94185216dde0465e68b9d57c20dacbc", hex.EncodeToString(key))
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	k1 := DeriveKey(password, []byte("salt-1"), 1000)
	k2 := DeriveKey(password, []byte("salt-2"), 1000)
	k3 := DeriveKey(password, []byte("salt-1"), 1001)

	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestAEAD_RoundTrip(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt"), 10)

	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hello")},
		{"binary", []byte{0, 1, 2, 255, 254, 0}},
		{"large", bytes.Repeat([]byte("x"), 64*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, ct, err := AEADEncrypt(key, tt.in)
			require.NoError(t, err)
			require.Len(t, iv, NonceSize)
			require.Len(t, ct, len(tt.in)+TagSize)

			pt, err := AEADDecrypt(key, iv, ct)
			require.NoError(t, err)
			require.True(t, bytes.Equal(tt.in, pt))
		})
	}
}

func TestAEADEncrypt_FreshNonce(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt"), 10)

	iv1, ct1, err := AEADEncrypt(key, []byte("same"))
	require.NoError(t, err)
	iv2, ct2, err := AEADEncrypt(key, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, ct1, ct2)
}

func TestAEADDecrypt_Failures(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt"), 10)
	other := DeriveKey([]byte("pw2"), []byte("salt"), 10)

	iv, ct, err := AEADEncrypt(key, []byte("payload"))
	require.NoError(t, err)

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xff

	cases := []struct {
		name string
		key  []byte
		iv   []byte
		ct   []byte
	}{
		{"wrong key", other, iv, ct},
		{"tampered", key, iv, tampered},
		{"short nonce", key, iv[:4], ct},
		{"bad key size", key[:10], iv, ct},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := AEADDecrypt(c.key, c.iv, c.ct)
			require.ErrorIs(t, err, common.ErrCrypto)
		})
	}
}

func TestVerifierHash(t *testing.T) {
	kek := DeriveKey([]byte("pw"), []byte("salt"), 10)
	h1 := VerifierHash(kek)
	h2 := VerifierHash(kek.Clone())

	assert.Len(t, h1, 32)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, []byte(kek), h1)
}

func TestSecretBytes_WipeAndClone(t *testing.T) {
	s := SecretBytes("top-secret")
	c := s.Clone()

	s.Wipe()

	assert.True(t, s.IsZero())
	assert.Equal(t, "top-secret", string(c))
	assert.Nil(t, SecretBytes(nil).Clone())
}

func TestSealOpenWithPassword(t *testing.T) {
	sealed, err := SealWithPassword([]byte("master"), []byte("imap-password"), 100)
	require.NoError(t, err)
	require.Len(t, sealed.Salt, common.SaltSize)
	require.Equal(t, 100, sealed.Iterations)

	b, err := DecodeBlob(sealed.Blob)
	require.NoError(t, err)
	require.Equal(t, AlgAESGCM, b.Algorithm)

	pt, err := OpenWithPassword([]byte("master"), sealed.Salt, sealed.Blob, 100)
	require.NoError(t, err)
	assert.Equal(t, "imap-password", string(pt))

	_, err = OpenWithPassword([]byte("other"), sealed.Salt, sealed.Blob, 100)
	require.ErrorIs(t, err, common.ErrCrypto)

	_, err = OpenWithPassword([]byte("master"), sealed.Salt, "garbage", 100)
	require.ErrorIs(t, err, common.ErrValidation)
}
