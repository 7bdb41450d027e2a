// Package keydirectory resolves recipients' public keys. The HTTP directory
// talks to a remote key server, Local answers from keys already stored in the
// client database, and Fallback chains the two.
package keydirectory

import (
	"context"
	"time"
)

// PublicKeyRecord is a public key published for an email address.
type PublicKeyRecord struct {
	ID           int64     `json:"id,omitempty"`
	AccountID    int64     `json:"accountId,omitempty"`
	KeyID        string    `json:"keyId,omitempty"`
	Email        string    `json:"email,omitempty"`
	PublicKeyPEM string    `json:"publicKeyPem"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// Directory looks up and publishes public keys.
type Directory interface {
	// FindPublicKeyByEmail returns (nil, nil) when no key is known.
	FindPublicKeyByEmail(ctx context.Context, email string) (*PublicKeyRecord, error)
	UploadPublicKey(ctx context.Context, email, publicKeyPEM string) (*PublicKeyRecord, error)
}
