package cryptox

import "github.com/dmitrijs2005/gophmail/internal/common"

// SecretBytes holds key material or a password. Owners release it with
//
//	kek := cryptox.DeriveKey(pw, salt, n)
//	defer kek.Wipe()
//
// so the buffer is zeroed on every return path, including errors and panics.
type SecretBytes []byte

// Wipe zeroes the backing buffer in place.
func (s SecretBytes) Wipe() {
	common.WipeByteArray(s)
}

// Clone returns an independent copy; wiping one never affects the other.
func (s SecretBytes) Clone() SecretBytes {
	if s == nil {
		return nil
	}
	c := make(SecretBytes, len(s))
	copy(c, s)
	return c
}

// Bytes exposes the live buffer for passing to primitives.
func (s SecretBytes) Bytes() []byte { return s }

// IsZero reports whether the buffer is empty or fully wiped.
func (s SecretBytes) IsZero() bool {
	for _, b := range s {
		if b != 0 {
			return false
		}
	}
	return true
}
