package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophmail/internal/server/config"
	"github.com/dmitrijs2005/gophmail/internal/transport"
	"github.com/dmitrijs2005/gophmail/internal/transport/transporttest"
)

func TestSMTPMailer_SendVerification(t *testing.T) {
	srv := transporttest.StartSMTPServer(t)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SMTPHost = srv.Host
	cfg.SMTPPort = srv.Port
	cfg.SMTPSecurity = "none"
	cfg.MailFrom = "keys@example.com"

	link := "http://keys.test/api/keys/verify?token=abc"
	require.NoError(t, NewSMTPMailer(cfg).SendVerification(context.Background(), "erin@example.com", link))

	got := srv.Received()
	require.Len(t, got, 1)
	assert.Equal(t, "keys@example.com", got[0].From)
	assert.Equal(t, []string{"erin@example.com"}, got[0].To)

	var parsed transport.RawMessage
	transport.ParseMessage(&parsed, got[0].Data)
	assert.Equal(t, "Confirm your public key", parsed.Subject)
	assert.Contains(t, parsed.BodyText, link)
}
