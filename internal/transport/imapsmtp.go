package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

var errNotConnected = errors.New("transport: not connected")

// IMAPSMTP reads over IMAP and sends over SMTP. One value is one session.
type IMAPSMTP struct {
	cfg  Config
	imap *imapclient.Client
	tls  *tls.Config
}

// NewIMAPSMTP returns an unconnected session. tlsConfig may be nil.
func NewIMAPSMTP(tlsConfig *tls.Config) *IMAPSMTP {
	return &IMAPSMTP{tls: tlsConfig}
}

// NewFactory returns a Factory producing IMAPSMTP sessions.
func NewFactory(tlsConfig *tls.Config) Factory {
	return func() MailTransport { return NewIMAPSMTP(tlsConfig) }
}

func (t *IMAPSMTP) Connect(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.cfg = cfg

	opts := &imapclient.Options{TLSConfig: t.tls}
	var (
		c   *imapclient.Client
		err error
	)
	switch cfg.Security {
	case models.SecurityStartTLS:
		c, err = imapclient.DialStartTLS(cfg.IMAPAddr(), opts)
	case models.SecurityNone:
		c, err = imapclient.DialInsecure(cfg.IMAPAddr(), opts)
	default:
		c, err = imapclient.DialTLS(cfg.IMAPAddr(), opts)
	}
	if err != nil {
		return fmt.Errorf("imap dial %s: %w", cfg.IMAPAddr(), err)
	}

	if err := c.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return fmt.Errorf("imap login: %w", err)
	}

	t.imap = c
	return nil
}

func (t *IMAPSMTP) ListFolders(ctx context.Context) ([]string, error) {
	if t.imap == nil {
		return nil, errNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes, err := t.imap.List("", "*", &imap.ListOptions{}).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap list: %w", err)
	}

	names := make([]string, 0, len(boxes))
	for _, mb := range boxes {
		selectable := true
		for _, a := range mb.Attrs {
			if a == imap.MailboxAttrNoSelect {
				selectable = false
			}
		}
		if selectable {
			names = append(names, mb.Mailbox)
		}
	}
	return names, nil
}

func (t *IMAPSMTP) selectFolder(folder string) error {
	if _, err := t.imap.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return fmt.Errorf("imap select %s: %w", folder, err)
	}
	return nil
}

func (t *IMAPSMTP) FetchHeaders(ctx context.Context, folder string, sinceUID uint64, limit int) ([]Header, error) {
	if t.imap == nil {
		return nil, errNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.selectFolder(folder); err != nil {
		return nil, err
	}

	var set imap.UIDSet
	set.AddRange(imap.UID(sinceUID+1), 0)

	bufs, err := t.imap.Fetch(set, &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch headers %s: %w", folder, err)
	}

	headers := make([]Header, 0, len(bufs))
	for _, b := range bufs {
		// "n:*" always matches the last message, even below n.
		if uint64(b.UID) <= sinceUID {
			continue
		}
		headers = append(headers, headerFromBuffer(b))
	}

	sort.Slice(headers, func(i, j int) bool { return headers[i].UID > headers[j].UID })
	if limit > 0 && len(headers) > limit {
		headers = headers[:limit]
	}
	return headers, nil
}

func headerFromBuffer(b *imapclient.FetchMessageBuffer) Header {
	h := Header{UID: uint64(b.UID)}
	if env := b.Envelope; env != nil {
		h.Subject = env.Subject
		h.MessageID = env.MessageID
		h.Date = env.Date
		if len(env.From) > 0 {
			h.From = env.From[0].Addr()
		}
	}
	for _, f := range b.Flags {
		if f == imap.FlagSeen {
			h.Seen = true
		}
	}
	return h
}

func (t *IMAPSMTP) FetchMessage(ctx context.Context, folder string, uid uint64) (*RawMessage, error) {
	if t.imap == nil {
		return nil, errNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.selectFolder(folder); err != nil {
		return nil, err
	}

	section := &imap.FetchItemBodySection{Peek: true}
	bufs, err := t.imap.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch uid %d: %w", uid, err)
	}
	if len(bufs) == 0 {
		return nil, common.NotFoundf("message uid %d in %s", uid, folder)
	}

	msg := &RawMessage{Header: headerFromBuffer(bufs[0])}
	if env := bufs[0].Envelope; env != nil {
		for _, a := range env.To {
			msg.To = append(msg.To, a.Addr())
		}
		for _, a := range env.Cc {
			msg.Cc = append(msg.Cc, a.Addr())
		}
	}
	ParseMessage(msg, bufs[0].FindBodySection(section))
	return msg, nil
}

func dialSMTP(cfg Config, tlsConfig *tls.Config) (*smtp.Client, error) {
	addr := cfg.SMTPAddr()
	switch cfg.Security {
	case models.SecurityStartTLS:
		return smtp.DialStartTLS(addr, tlsConfig)
	case models.SecurityNone:
		return smtp.Dial(addr)
	default:
		return smtp.DialTLS(addr, tlsConfig)
	}
}

// Send opens a short-lived SMTP connection for msg. Connect must have been
// called so the session knows the account configuration.
func (t *IMAPSMTP) Send(ctx context.Context, msg *OutgoingMessage) error {
	if t.cfg.SMTPHost == "" {
		return errNotConnected
	}
	return SendSMTP(ctx, t.cfg, t.tls, msg)
}

// SendSMTP delivers msg through the SMTP half of cfg. The IMAP fields are
// not used. Login is attempted only when cfg carries a password.
func SendSMTP(ctx context.Context, cfg Config, tlsConfig *tls.Config, msg *OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := BuildMessage(msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	c, err := dialSMTP(cfg, tlsConfig)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", cfg.SMTPAddr(), err)
	}
	defer c.Close()

	if cfg.Password != "" {
		if err := c.Auth(sasl.NewPlainClient("", cfg.Username, cfg.Password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.SendMail(msg.From, msg.Recipients(), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return c.Quit()
}

func (t *IMAPSMTP) Disconnect() error {
	if t.imap == nil {
		return nil
	}
	c := t.imap
	t.imap = nil
	if err := c.Logout().Wait(); err != nil {
		_ = c.Close()
		return fmt.Errorf("imap logout: %w", err)
	}
	return c.Close()
}
