// Package cryptox holds the stateless primitives of the mail core: password
// key derivation, AES-GCM, the legacy DES body cipher, RSA key wrapping and
// signing, PEM helpers and the canonical "alg|iv|ct" blob codec.
//
// Every function that fails for cryptographic reasons returns an error
// matching common.ErrCrypto; malformed input matches common.ErrValidation.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of every derived KEK (AES-256).
	KeySize = 32
	// NonceSize is the GCM nonce length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// DeriveKey runs PBKDF2-HMAC-SHA256 and returns a 256-bit key. Identical
// inputs always produce identical output. The caller owns wiping the result.
func DeriveKey(password, salt []byte, iterations int) SecretBytes {
	if iterations <= 0 {
		iterations = common.DefaultKDFIterations
	}
	return SecretBytes(pbkdf2.Key(password, salt, iterations, KeySize, sha256.New))
}

// VerifierHash is the value stored next to the master password salt. It is a
// hash of the derived KEK, never of the password itself.
func VerifierHash(kek []byte) []byte {
	h := sha256.Sum256(kek)
	return h[:]
}

// NewSalt returns a fresh random KDF salt.
func NewSalt() ([]byte, error) {
	salt, err := common.GenerateRandByteArray(common.SaltSize)
	if err != nil {
		return nil, common.Cryptof(err, "generate salt")
	}
	return salt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, common.Cryptof(nil, "invalid AES key size %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, common.Cryptof(err, "aes cipher")
	}
	gcm, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, common.Cryptof(err, "gcm")
	}
	return gcm, nil
}

// AEADEncrypt seals plaintext with AES-256-GCM under a fresh random nonce.
// The returned ciphertext carries the 16-byte tag at its end.
func AEADEncrypt(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, common.Cryptof(err, "generate nonce")
	}

	return iv, gcm.Seal(nil, iv, plaintext, nil), nil
}

// AEADDecrypt is the inverse of AEADEncrypt. A wrong key, a tampered
// ciphertext or a wrong nonce all surface as common.ErrCrypto.
func AEADDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != NonceSize {
		return nil, common.Cryptof(nil, "invalid nonce size %d", len(iv))
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, common.Cryptof(err, "aead open")
	}
	return plaintext, nil
}
