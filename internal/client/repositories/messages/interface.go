package messages

import (
	"context"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
)

type Repository interface {
	// Save inserts (ID == 0) or updates a message.
	Save(ctx context.Context, m *models.Message) (*models.Message, error)
	// Get returns (nil, nil) if the message does not exist.
	Get(ctx context.Context, id int64) (*models.Message, error)
	// FindByServerUID is the idempotency lookup used by sync.
	FindByServerUID(ctx context.Context, accountID int64, uid uint64) (*models.Message, error)
	// ListByFolder returns non-deleted messages, newest first.
	ListByFolder(ctx context.Context, folderID int64) ([]*models.Message, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*models.Message, error)
	SetSeen(ctx context.Context, id int64, seen bool) error
	// SoftDelete flags the message deleted; it stays in storage.
	SoftDelete(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
