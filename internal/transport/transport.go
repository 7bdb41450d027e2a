// Package transport is the boundary between the mail core and the mail
// servers. The core only sees MailTransport; IMAPSMTP implements it with
// IMAP for reading and SMTP for sending.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
)

// Config is everything needed to open a session for one account. Password
// is the decrypted mail-login credential and must not be logged.
type Config struct {
	Email    string
	Name     string
	Username string
	Password string
	IMAPHost string
	IMAPPort int
	SMTPHost string
	SMTPPort int
	Security models.Security
}

func (c Config) IMAPAddr() string { return fmt.Sprintf("%s:%d", c.IMAPHost, c.IMAPPort) }
func (c Config) SMTPAddr() string { return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort) }

// String never prints the password.
func (c Config) String() string {
	return fmt.Sprintf("%s imap=%s smtp=%s security=%s", c.Email, c.IMAPAddr(), c.SMTPAddr(), c.Security)
}

// Header is the envelope-level view of a server message.
type Header struct {
	UID            uint64
	MessageID      string
	From           string
	Subject        string
	Date           time.Time
	Seen           bool
	HasAttachments bool
}

// RawAttachment is one non-body MIME part. Size is -1 when unknown.
type RawAttachment struct {
	FileName    string
	ContentType string
	Size        int64
	PartIndex   int
	Data        []byte
}

// RawMessage is a fully fetched server message.
type RawMessage struct {
	Header
	To          []string
	Cc          []string
	BodyText    string
	BodyHTML    string
	Attachments []RawAttachment
}

type OutgoingAttachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

type OutgoingMessage struct {
	MessageID   string
	From        string
	FromName    string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	BodyText    string
	BodyHTML    string
	Date        time.Time
	Attachments []OutgoingAttachment
}

// Recipients returns To, Cc and Bcc in that order.
func (m *OutgoingMessage) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	return append(out, m.Bcc...)
}

// MailTransport is a stateful, connection-oriented session. Implementations
// are not required to be safe for concurrent use; callers open one session
// per operation through a Factory.
type MailTransport interface {
	Connect(ctx context.Context, cfg Config) error
	ListFolders(ctx context.Context) ([]string, error)
	// FetchHeaders returns headers with UID strictly greater than sinceUID,
	// newest first, at most limit of them. sinceUID 0 means all.
	FetchHeaders(ctx context.Context, folder string, sinceUID uint64, limit int) ([]Header, error)
	FetchMessage(ctx context.Context, folder string, uid uint64) (*RawMessage, error)
	Send(ctx context.Context, msg *OutgoingMessage) error
	Disconnect() error
}

// Factory opens a fresh, unconnected transport.
type Factory func() MailTransport
