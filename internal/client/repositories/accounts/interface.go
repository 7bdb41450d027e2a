package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
)

type Repository interface {
	// Save inserts a (ID == 0) or updates an account and returns it with ID set.
	Save(ctx context.Context, a *models.Account) (*models.Account, error)
	// Get returns (nil, nil) if the account does not exist.
	Get(ctx context.Context, id int64) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	// UpdateCredential replaces the sealed mail-login password.
	UpdateCredential(ctx context.Context, id int64, salt []byte, blob string, iterations int) error
	Delete(ctx context.Context, id int64) error
}
