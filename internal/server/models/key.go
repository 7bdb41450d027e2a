// Package models defines the records stored by the key server.
package models

import "time"

// PublicKey is an RSA public key published for an email address. Unverified
// keys are never returned by lookups.
type PublicKey struct {
	ID           int64
	Email        string
	PublicKeyPEM string
	Verified     bool
	CreatedAt    time.Time
	VerifiedAt   time.Time
}
