// Package attachments keeps the bytes of fetched attachment parts outside
// the database, either on the local filesystem or in an S3-compatible bucket.
package attachments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is a flat key/value blob store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns common.ErrNotFound for an unknown key.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewStorageKey returns a fresh key grouped by account and day.
func NewStorageKey(accountID int64) string {
	d := time.Now()
	return fmt.Sprintf("accounts/%d/%d/%d/%d/%v", accountID, d.Year(), d.Month(), d.Day(), uuid.New())
}
