package verifier

import (
	"context"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
)

// Repository persists the single master password verifier row.
type Repository interface {
	// Get returns the verifier, or (nil, nil) when none was created yet.
	Get(ctx context.Context) (*models.MasterPasswordVerifier, error)
	// Create inserts the verifier. A second call fails with
	// common.ErrAlreadyInitialized.
	Create(ctx context.Context, v *models.MasterPasswordVerifier) error
	// Update rewrites salt, hash and iterations in place.
	Update(ctx context.Context, v *models.MasterPasswordVerifier) error
}
