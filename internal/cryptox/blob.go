package cryptox

import (
	"encoding/base64"
	"strings"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

// Algorithm names written into the first blob field. They match the names
// already present in existing stores and must not change.
const (
	AlgAESGCM = "AES/GCM/NoPadding"
	AlgDESECB = "DES/ECB/PKCS5Padding"
	AlgRSA    = "RSA/ECB/PKCS1Padding"
)

const blobSep = "|"

// EncryptedBlob is the at-rest and interchange form of every secret.
type EncryptedBlob struct {
	Algorithm  string
	IV         []byte
	Ciphertext []byte
}

// Encode renders "algorithm|base64(iv)|base64(ciphertext)" using standard
// padded base64. Empty iv or ciphertext become empty segments.
func (b EncryptedBlob) Encode() string {
	return b.Algorithm + blobSep +
		base64.StdEncoding.EncodeToString(b.IV) + blobSep +
		base64.StdEncoding.EncodeToString(b.Ciphertext)
}

// DecodeBlob parses the output of Encode. Fewer than three fields or invalid
// base64 is a validation error.
func DecodeBlob(s string) (EncryptedBlob, error) {
	parts := strings.SplitN(s, blobSep, 3)
	if len(parts) < 3 {
		return EncryptedBlob{}, common.Validationf("encrypted blob: expected 3 fields, got %d", len(parts))
	}

	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return EncryptedBlob{}, common.Validationf("encrypted blob iv: %v", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return EncryptedBlob{}, common.Validationf("encrypted blob ciphertext: %v", err)
	}

	return EncryptedBlob{Algorithm: parts[0], IV: iv, Ciphertext: ct}, nil
}
