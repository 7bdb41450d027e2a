package services

import (
	"context"

	"github.com/dmitrijs2005/gophmail/internal/client/attachments"
	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/transport"
)

// storeAttachmentBlobs writes attachment bytes to the blob store and returns
// the metadata rows to persist. A part whose bytes could not be stored keeps
// an empty StorageKey. MessageID is left for the caller to set.
func storeAttachmentBlobs(ctx context.Context, store attachments.Store, log logging.Logger,
	accountID int64, parts []transport.RawAttachment) []*models.Attachment {
	out := make([]*models.Attachment, 0, len(parts))
	for _, p := range parts {
		a := &models.Attachment{
			FileName:    p.FileName,
			ContentType: p.ContentType,
			Size:        p.Size,
			PartIndex:   p.PartIndex,
		}
		if store != nil && p.Data != nil {
			key := attachments.NewStorageKey(accountID)
			if err := store.Put(ctx, key, p.Data); err != nil {
				log.Warn(ctx, "attachment not stored", "file", p.FileName, "err", err)
			} else {
				a.StorageKey = key
			}
		}
		out = append(out, a)
	}
	return out
}

// discardAttachmentBlobs removes the bytes written for rows that were never
// committed.
func discardAttachmentBlobs(ctx context.Context, store attachments.Store, log logging.Logger, atts []*models.Attachment) {
	keys := make([]string, 0, len(atts))
	for _, a := range atts {
		if a.StorageKey != "" {
			keys = append(keys, a.StorageKey)
		}
	}
	deleteBlobs(ctx, store, log, keys)
}

func deleteBlobs(ctx context.Context, store attachments.Store, log logging.Logger, keys []string) {
	if store == nil {
		return
	}
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			log.Warn(ctx, "attachment blob not removed", "key", key, "err", err)
		}
	}
}
