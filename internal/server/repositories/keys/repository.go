// Package keys stores published public keys.
package keys

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/server/models"
)

// Repository persists public keys. Emails are stored as given; callers
// normalize them.
type Repository interface {
	// Create inserts k and fills ID and CreatedAt.
	Create(ctx context.Context, k *models.PublicKey) (*models.PublicKey, error)
	// Get returns common.ErrNotFound for an unknown id.
	Get(ctx context.Context, id int64) (*models.PublicKey, error)
	// ListByEmail returns the keys of email, newest first. With verifiedOnly
	// pending keys are skipped.
	ListByEmail(ctx context.Context, email string, verifiedOnly bool) ([]*models.PublicKey, error)
	// MarkVerified returns common.ErrNotFound for an unknown id.
	MarkVerified(ctx context.Context, id int64, at time.Time) error
}
