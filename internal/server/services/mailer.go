package services

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/server/config"
	"github.com/dmitrijs2005/gophmail/internal/transport"
)

// Mailer delivers key verification links.
type Mailer interface {
	SendVerification(ctx context.Context, email, link string) error
}

// SMTPMailer sends verification links through an SMTP relay.
type SMTPMailer struct {
	cfg  transport.Config
	from string
	tls  *tls.Config
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		cfg: transport.Config{
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			SMTPHost: cfg.SMTPHost,
			SMTPPort: cfg.SMTPPort,
			Security: models.Security(cfg.SMTPSecurity),
		},
		from: cfg.MailFrom,
	}
}

func (m *SMTPMailer) SendVerification(ctx context.Context, email, link string) error {
	msg := &transport.OutgoingMessage{
		MessageID: transport.NewMessageID(m.from),
		From:      m.from,
		FromName:  "GophMail key server",
		To:        []string{email},
		Subject:   "Confirm your public key",
		BodyText: "A public key was published for " + email + ".\r\n\r\n" +
			"To make it visible to other users, open this link:\r\n\r\n" +
			link + "\r\n\r\n" +
			"If you did not publish this key, ignore this message.\r\n",
		Date: time.Now(),
	}
	return transport.SendSMTP(ctx, m.cfg, m.tls, msg)
}
