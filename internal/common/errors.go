// Package common defines the error taxonomy and small helpers shared by every
// layer of the mail core. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Taxonomy roots.
	ErrValidation = errors.New("validation error")
	ErrCrypto     = errors.New("crypto error")
	ErrNotFound   = errors.New("not found")
	ErrCore       = errors.New("core error")

	// Master password state.
	ErrAlreadyInitialized = errors.New("master password already initialized")
	ErrNotInitialized     = errors.New("master password not initialized")
	ErrLocked             = errors.New("master secret is locked")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Cryptof wraps cause (may be nil) under ErrCrypto.
func Cryptof(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrCrypto, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrCrypto, msg, cause)
}

// NotFoundf returns an error wrapping ErrNotFound, e.g. NotFoundf("key %d", id).
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Coref wraps an unexpected failure under ErrCore, keeping the cause reachable.
func Coref(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrCore, fmt.Sprintf(format, args...), cause)
}
