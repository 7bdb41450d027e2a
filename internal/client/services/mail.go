package services

import (
	"context"
	"fmt"
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

type SendAttachment struct {
	FileName    string `validate:"required"`
	ContentType string
	Data        []byte
}

type SendRequest struct {
	AccountID   int64    `validate:"required"`
	To          []string `validate:"required,min=1,dive,email"`
	Cc          []string `validate:"omitempty,dive,email"`
	Bcc         []string `validate:"omitempty,dive,email"`
	Subject     string   `validate:"max=998"`
	Body        string
	HTML        bool
	Attachments []SendAttachment `validate:"dive"`
	Encrypt     bool
	Sign        bool
}

type SendResult struct {
	MessageID int64
	Encrypted bool
	Signed    bool
}

type SendOutcome = workerpool.Result[*SendResult]

// MessageDetail is a stored message with its readable body.
type MessageDetail struct {
	Message          *models.Message
	Body             string
	HTML             string
	Attachments      []*models.Attachment
	Decrypted        bool
	SignatureChecked bool
	SignatureValid   bool
}

// MailService sends mail and serves stored messages.
//
// Send hands the message to SMTP before anything is written locally; the
// sent copy, its wrapped keys and attachment rows are then persisted in one
// transaction into the Sent folder.
type MailService interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
	SendAsync(ctx context.Context, req SendRequest) <-chan SendOutcome
	GetMessage(ctx context.Context, accountID, messageID int64) (*MessageDetail, error)
	// ListMessages lists non-deleted messages of a folder (all folders when
	// folder is empty), newest first. page is zero-based; size <= 0 means
	// everything.
	ListMessages(ctx context.Context, accountID int64, folder string, page, size int) ([]models.MessageSummary, error)
	MarkSeen(ctx context.Context, accountID, messageID int64, seen bool) error
	DeleteMessage(ctx context.Context, accountID, messageID int64) error
	AttachmentData(ctx context.Context, accountID, attachmentID int64) (*models.Attachment, []byte, error)
}

type mailService struct {
	store      *repositories.Store
	accounts   AccountService
	folders    FolderService
	crypto     MessageCryptoService
	transports transport.Factory
	blobs      attachments.Store
	pool       *workerpool.Pool
	notify     NotificationService
	pub        events.Publisher
	metrics    *metrics.Metrics
	log        logging.Logger
}

// MailDeps groups the collaborators of NewMailService.
type MailDeps struct {
	Store         *repositories.Store
	Accounts      AccountService
	Folders       FolderService
	Crypto        MessageCryptoService
	Transports    transport.Factory
	Blobs         attachments.Store
	Pool          *workerpool.Pool
	Notifications NotificationService
	Events        events.Publisher
	Metrics       *metrics.Metrics
	Log           logging.Logger
}

func NewMailService(d MailDeps) MailService {
	return &mailService{
		store:      d.Store,
		accounts:   d.Accounts,
		folders:    d.Folders,
		crypto:     d.Crypto,
		transports: d.Transports,
		blobs:      d.Blobs,
		pool:       d.Pool,
		notify:     d.Notifications,
		pub:        d.Events,
		metrics:    d.Metrics,
		log:        d.Log,
	}
}

func (s *mailService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	acc, err := s.accounts.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.accounts.ResolveConfig(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "send start", "account_id", acc.ID, "encrypt", req.Encrypt, "sign", req.Sign,
		"attachments", len(req.Attachments))

	enc := s.crypto.EncryptOutgoing(ctx, EncryptRequest{
		AccountID: acc.ID,
		To:        req.To,
		Cc:        req.Cc,
		Bcc:       req.Bcc,
		Body:      req.Body,
		Encrypt:   req.Encrypt,
		Sign:      req.Sign,
	})

	out := &transport.OutgoingMessage{
		MessageID: transport.NewMessageID(acc.Email),
		From:      acc.Email,
		FromName:  acc.DisplayName,
		To:        req.To,
		Cc:        req.Cc,
		Bcc:       req.Bcc,
		Subject:   req.Subject,
		Date:      time.Now(),
	}
	if req.HTML {
		out.BodyHTML = req.Body
	} else {
		out.BodyText = req.Body
	}
	for _, a := range req.Attachments {
		out.Attachments = append(out.Attachments, transport.OutgoingAttachment{
			FileName: a.FileName, ContentType: a.ContentType, Data: a.Data,
		})
	}

	if err := s.deliver(ctx, cfg, out); err != nil {
		s.notify.Error(ctx, "Failed to send message via SMTP", err)
		return nil, common.Coref(err, "send message")
	}
	s.metrics.MessageSent()

	saved, err := s.persistSent(ctx, acc, req, out, enc)
	if err != nil {
		s.notify.Error(ctx, "Failed to persist sent message", err)
		return nil, common.Coref(err, "persist sent message")
	}

	s.pub.Publish(events.NewMessage{Summary: saved.Summary()})
	s.log.Info(ctx, "send completed", "message_id", saved.ID)
	return &SendResult{MessageID: saved.ID, Encrypted: enc.Encrypted, Signed: len(enc.Signature) > 0}, nil
}

func (s *mailService) deliver(ctx context.Context, cfg transport.Config, out *transport.OutgoingMessage) error {
	t := s.transports()
	if err := t.Connect(ctx, cfg); err != nil {
		return err
	}
	defer func() {
		if err := t.Disconnect(); err != nil {
			s.log.Warn(ctx, "disconnect failed", "err", err)
		}
	}()
	return t.Send(ctx, out)
}

func (s *mailService) persistSent(ctx context.Context, acc *models.Account, req SendRequest,
	out *transport.OutgoingMessage, enc *EncryptedOutgoing) (*models.Message, error) {
	folder, err := s.folders.EnsureFolder(ctx, acc.ID, common.SentFolder)
	if err != nil {
		return nil, err
	}

	parts := make([]transport.RawAttachment, 0, len(req.Attachments))
	for i, a := range req.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		parts = append(parts, transport.RawAttachment{
			FileName: a.FileName, ContentType: ct, Size: int64(len(a.Data)), PartIndex: i + 1, Data: a.Data,
		})
	}
	atts := storeAttachmentBlobs(ctx, s.blobs, s.log, acc.ID, parts)

	msg := &models.Message{
		AccountID:      acc.ID,
		FolderID:       folder.ID,
		MessageID:      out.MessageID,
		Subject:        req.Subject,
		Sender:         acc.Email,
		Recipients:     req.To,
		Cc:             req.Cc,
		SentAt:         out.Date.UTC(),
		IsSeen:         true,
		IsEncrypted:    enc.Encrypted,
		HasAttachments: len(atts) > 0,
		Signature:      enc.Signature,
	}
	switch {
	case enc.Encrypted:
		msg.BodyBlob = enc.BodyBlob
	case req.HTML:
		msg.BodyHTML = req.Body
	default:
		msg.BodyText = req.Body
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		if _, err := r.Messages.Save(ctx, msg); err != nil {
			return err
		}
		for _, wk := range enc.WrappedKeys {
			wk.MessageID = msg.ID
			if _, err := r.WrappedKeys.Save(ctx, wk); err != nil {
				return err
			}
		}
		for _, a := range atts {
			a.MessageID = msg.ID
			if _, err := r.Attachments.Save(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		discardAttachmentBlobs(ctx, s.blobs, s.log, atts)
		return nil, err
	}
	return msg, nil
}

func (s *mailService) SendAsync(ctx context.Context, req SendRequest) <-chan SendOutcome {
	return workerpool.Go(ctx, s.pool, func(ctx context.Context) (*SendResult, error) {
		return s.Send(ctx, req)
	})
}

func (s *mailService) ownedMessage(ctx context.Context, accountID, messageID int64) (*models.Message, error) {
	msg, err := s.store.Repos().Messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.AccountID != accountID {
		return nil, common.NotFoundf("message %d", messageID)
	}
	return msg, nil
}

func (s *mailService) GetMessage(ctx context.Context, accountID, messageID int64) (*MessageDetail, error) {
	msg, err := s.ownedMessage(ctx, accountID, messageID)
	if err != nil {
		return nil, err
	}

	res := s.crypto.DecryptIncoming(ctx, msg)
	atts, err := s.store.Repos().Attachments.ListByMessage(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	return &MessageDetail{
		Message:          msg,
		Body:             res.Body,
		HTML:             msg.BodyHTML,
		Attachments:      atts,
		Decrypted:        res.Decrypted,
		SignatureChecked: res.SignatureChecked,
		SignatureValid:   res.SignatureValid,
	}, nil
}

func (s *mailService) ListMessages(ctx context.Context, accountID int64, folder string, page, size int) ([]models.MessageSummary, error) {
	repos := s.store.Repos()

	var msgs []*models.Message
	if folder == "" {
		all, err := repos.Messages.ListByAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		for i := len(all) - 1; i >= 0; i-- {
			if !all[i].IsDeleted {
				msgs = append(msgs, all[i])
			}
		}
	} else {
		f, err := repos.Folders.FindByName(ctx, accountID, folder)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return []models.MessageSummary{}, nil
		}
		if msgs, err = repos.Messages.ListByFolder(ctx, f.ID); err != nil {
			return nil, err
		}
	}

	msgs = paginate(msgs, page, size)
	out := make([]models.MessageSummary, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Summary())
	}
	return out, nil
}

func paginate[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	if page < 0 {
		page = 0
	}
	start := page * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (s *mailService) MarkSeen(ctx context.Context, accountID, messageID int64, seen bool) error {
	if _, err := s.ownedMessage(ctx, accountID, messageID); err != nil {
		return err
	}
	return s.store.Repos().Messages.SetSeen(ctx, messageID, seen)
}

func (s *mailService) DeleteMessage(ctx context.Context, accountID, messageID int64) error {
	if _, err := s.ownedMessage(ctx, accountID, messageID); err != nil {
		return err
	}
	if err := s.store.Repos().Messages.SoftDelete(ctx, messageID); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	s.notify.Info(ctx, "Message marked deleted")
	return nil
}

func (s *mailService) AttachmentData(ctx context.Context, accountID, attachmentID int64) (*models.Attachment, []byte, error) {
	a, err := s.store.Repos().Attachments.Get(ctx, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, common.NotFoundf("attachment %d", attachmentID)
	}
	if _, err := s.ownedMessage(ctx, accountID, a.MessageID); err != nil {
		return nil, nil, err
	}
	if a.StorageKey == "" || s.blobs == nil {
		return a, nil, common.NotFoundf("content of attachment %d", attachmentID)
	}
	data, err := s.blobs.Get(ctx, a.StorageKey)
	if err != nil {
		return a, nil, err
	}
	return a, data, nil
}
