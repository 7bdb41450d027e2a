package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/attachments"
	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/metrics"
	"github.com/dmitrijs2005/gophmail/internal/transport"
	"github.com/dmitrijs2005/gophmail/internal/workerpool"
)

// SyncResult summarises one folder or account synchronisation.
type SyncResult struct {
	NewMessages int
	Failed      int
	Errors      []string
}

func (r *SyncResult) add(o SyncResult) {
	r.NewMessages += o.NewMessages
	r.Failed += o.Failed
	r.Errors = append(r.Errors, o.Errors...)
}

type SyncOutcome = workerpool.Result[SyncResult]

// SyncService pulls new server messages into local storage.
//
// Headers above the folder cursor are processed in ascending UID order.
// Each new message is persisted together with its attachment rows and the
// cursor advance in one transaction, so progress survives a failure in the
// middle of a batch. Messages already stored under (account, server UID)
// are skipped but still move the cursor. A failing message is recorded and
// the remaining ones are processed.
type SyncService interface {
	// SyncFolder opens its own transport session. The folder must be known
	// locally.
	SyncFolder(ctx context.Context, accountID int64, folder string) (SyncResult, error)
	// SyncAccount syncs every local folder of the account over one session
	// and always emits SyncCompleted.
	SyncAccount(ctx context.Context, accountID int64) (SyncResult, error)
	SyncAccountAsync(ctx context.Context, accountID int64) <-chan SyncOutcome
}

type SyncDeps struct {
	Store         *repositories.Store
	Accounts      AccountService
	Folders       FolderService
	Transports    transport.Factory
	Blobs         attachments.Store
	Pool          *workerpool.Pool
	Notifications NotificationService
	Events        events.Publisher
	Metrics       *metrics.Metrics
	Log           logging.Logger
	// FetchLimit bounds FetchHeaders; zero means common.DefaultFetchLimit.
	FetchLimit int
}

type syncService struct {
	store      *repositories.Store
	accounts   AccountService
	folders    FolderService
	transports transport.Factory
	blobs      attachments.Store
	pool       *workerpool.Pool
	notify     NotificationService
	pub        events.Publisher
	metrics    *metrics.Metrics
	log        logging.Logger
	fetchLimit int
}

func NewSyncService(d SyncDeps) SyncService {
	limit := d.FetchLimit
	if limit <= 0 {
		limit = common.DefaultFetchLimit
	}
	return &syncService{
		store:      d.Store,
		accounts:   d.Accounts,
		folders:    d.Folders,
		transports: d.Transports,
		blobs:      d.Blobs,
		pool:       d.Pool,
		notify:     d.Notifications,
		pub:        d.Events,
		metrics:    d.Metrics,
		log:        d.Log,
		fetchLimit: limit,
	}
}

func (s *syncService) SyncFolder(ctx context.Context, accountID int64, folder string) (SyncResult, error) {
	f, err := s.store.Repos().Folders.FindByName(ctx, accountID, folder)
	if err != nil {
		return SyncResult{}, err
	}
	if f == nil {
		return SyncResult{}, common.NotFoundf("folder %q", folder)
	}

	cfg, err := s.accounts.ResolveConfig(ctx, accountID)
	if err != nil {
		return SyncResult{}, err
	}

	t := s.transports()
	if err := t.Connect(ctx, cfg); err != nil {
		s.notify.Error(ctx, "Sync folder failed: "+folder, err)
		return SyncResult{}, common.Coref(err, "connect")
	}
	defer s.disconnect(ctx, t)

	res, err := s.syncFolder(ctx, t, accountID, f)
	if err != nil {
		s.notify.Error(ctx, "Sync folder failed: "+folder, err)
		return res, err
	}
	s.notify.Info(ctx, fmt.Sprintf("synced folder: %s, new=%d", folder, res.NewMessages))
	return res, nil
}

func (s *syncService) disconnect(ctx context.Context, t transport.MailTransport) {
	if err := t.Disconnect(); err != nil {
		s.log.Warn(ctx, "disconnect failed", "err", err)
	}
}

// syncFolder runs the per-folder algorithm over an already connected
// session. Only a header fetch failure is returned as an error.
func (s *syncService) syncFolder(ctx context.Context, t transport.MailTransport, accountID int64, f *models.Folder) (SyncResult, error) {
	var res SyncResult

	cursor, err := s.folders.Cursor(ctx, f.ID)
	if err != nil {
		return res, err
	}

	headers, err := t.FetchHeaders(ctx, f.ServerName, cursor, s.fetchLimit)
	if err != nil {
		return res, common.Coref(err, "fetch headers of %s", f.ServerName)
	}
	slices.SortFunc(headers, func(a, b transport.Header) int {
		switch {
		case a.UID < b.UID:
			return -1
		case a.UID > b.UID:
			return 1
		}
		return 0
	})

	s.log.Debug(ctx, "sync folder", "account_id", accountID, "folder", f.ServerName,
		"cursor", cursor, "headers", len(headers))

	for _, h := range headers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		saved, err := s.syncMessage(ctx, t, accountID, f, h)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s uid=%d: %v", f.ServerName, h.UID, err))
			s.metrics.MessageFailed()
			s.log.Error(ctx, "sync message failed", "folder", f.ServerName, "uid", h.UID, "err", err)
			s.notify.Error(ctx, fmt.Sprintf("Failed to persist incoming message uid=%d", h.UID), err)
			continue
		}
		if saved == nil {
			continue
		}
		res.NewMessages++
		s.metrics.MessageSynced()
		s.pub.Publish(events.NewMessage{Summary: saved.Summary()})
	}
	return res, nil
}

// syncMessage persists one header. It returns (nil, nil) when the message
// was already stored.
func (s *syncService) syncMessage(ctx context.Context, t transport.MailTransport, accountID int64,
	f *models.Folder, h transport.Header) (*models.Message, error) {
	existing, err := s.store.Repos().Messages.FindByServerUID(ctx, accountID, h.UID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, s.store.Repos().Folders.AdvanceCursor(ctx, f.ID, h.UID)
	}

	raw, err := t.FetchMessage(ctx, f.ServerName, h.UID)
	if err != nil {
		return nil, err
	}

	atts := storeAttachmentBlobs(ctx, s.blobs, s.log, accountID, raw.Attachments)

	sentAt := raw.Date
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	from := raw.From
	if from == "" {
		from = h.From
	}
	subject := raw.Subject
	if subject == "" {
		subject = h.Subject
	}

	msg := &models.Message{
		AccountID:      accountID,
		FolderID:       f.ID,
		ServerUID:      h.UID,
		MessageID:      raw.MessageID,
		Subject:        subject,
		Sender:         from,
		Recipients:     raw.To,
		Cc:             raw.Cc,
		SentAt:         sentAt.UTC(),
		IsSeen:         h.Seen,
		HasAttachments: len(atts) > 0 || h.HasAttachments,
		BodyText:       raw.BodyText,
		BodyHTML:       raw.BodyHTML,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		if _, err := r.Messages.Save(ctx, msg); err != nil {
			return err
		}
		for _, a := range atts {
			a.MessageID = msg.ID
			if _, err := r.Attachments.Save(ctx, a); err != nil {
				return err
			}
		}
		return r.Folders.AdvanceCursor(ctx, f.ID, h.UID)
	})
	if err != nil {
		discardAttachmentBlobs(ctx, s.blobs, s.log, atts)
		return nil, err
	}
	return msg, nil
}

func (s *syncService) SyncAccount(ctx context.Context, accountID int64) (SyncResult, error) {
	started := time.Now()
	s.pub.Publish(events.SyncStarted{AccountID: accountID})
	s.log.Info(ctx, "sync account start", "account_id", accountID)

	var res SyncResult
	err := s.syncAccount(ctx, accountID, &res)

	success := err == nil && res.Failed == 0
	details := fmt.Sprintf("new=%d failed=%d", res.NewMessages, res.Failed)
	if err != nil {
		details = "sync failed: " + err.Error()
		s.notify.Error(ctx, fmt.Sprintf("Sync account failed: %d", accountID), err)
	} else if len(res.Errors) > 0 {
		details += ": " + strings.Join(res.Errors, "; ")
	}

	run := &models.SyncRun{
		AccountID:  accountID,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Success:    success,
		Fetched:    res.NewMessages,
		Failed:     res.Failed,
		Details:    details,
	}
	if _, serr := s.store.Repos().SyncRuns.Save(ctx, run); serr != nil {
		s.log.Warn(ctx, "sync run not recorded", "account_id", accountID, "err", serr)
	}

	s.metrics.SyncRun(success, time.Since(started))
	s.pub.Publish(events.SyncCompleted{AccountID: accountID, Success: success, Details: details})
	s.log.Info(ctx, "sync account completed", "account_id", accountID, "success", success,
		"new", res.NewMessages, "failed", res.Failed)
	return res, err
}

func (s *syncService) syncAccount(ctx context.Context, accountID int64, res *SyncResult) error {
	cfg, err := s.accounts.ResolveConfig(ctx, accountID)
	if err != nil {
		return err
	}

	t := s.transports()
	if err := t.Connect(ctx, cfg); err != nil {
		return common.Coref(err, "connect")
	}
	defer s.disconnect(ctx, t)

	folders, err := s.folders.ListFolders(ctx, accountID)
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		remote, err := t.ListFolders(ctx)
		if err != nil {
			s.log.Warn(ctx, "list remote folders failed", "account_id", accountID, "err", err)
		} else {
			s.folders.ImportRemoteFolders(ctx, accountID, remote)
		}
		if folders, err = s.folders.ListFolders(ctx, accountID); err != nil {
			return err
		}
	}

	var errs []error
	for _, f := range folders {
		fr, err := s.syncFolder(ctx, t, accountID, f)
		res.add(fr)
		if err != nil {
			s.notify.Error(ctx, "Sync folder failed: "+f.ServerName, err)
			errs = append(errs, fmt.Errorf("folder %s: %w", f.ServerName, err))
		}
	}
	return errors.Join(errs...)
}

func (s *syncService) SyncAccountAsync(ctx context.Context, accountID int64) <-chan SyncOutcome {
	return workerpool.Go(ctx, s.pool, func(ctx context.Context) (SyncResult, error) {
		return s.SyncAccount(ctx, accountID)
	})
}
