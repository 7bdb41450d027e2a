package keys

import (
	"context"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
)

type Repository interface {
	Save(ctx context.Context, k *models.KeyRecord) (*models.KeyRecord, error)
	// Get returns (nil, nil) if no key has the given id.
	Get(ctx context.Context, id int64) (*models.KeyRecord, error)
	// FindPrimary returns the lowest-id key of the account. With
	// privateOnly set, public-only keys are skipped.
	FindPrimary(ctx context.Context, accountID int64, privateOnly bool) (*models.KeyRecord, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*models.KeyRecord, error)
	// ListWithPrivateKey returns every key, across accounts, that carries
	// encrypted private material.
	ListWithPrivateKey(ctx context.Context) ([]*models.KeyRecord, error)
	// FindPublicByEmail returns the lowest-id key of the account owning email.
	FindPublicByEmail(ctx context.Context, email string) (*models.KeyRecord, error)
	UpdatePrivateKey(ctx context.Context, id int64, salt []byte, blob string, iterations int) error
	Delete(ctx context.Context, id int64) error
}
