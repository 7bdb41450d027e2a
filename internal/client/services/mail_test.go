package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_Plaintext(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")

	res, err := e.mail.Send(ctx, SendRequest{
		AccountID: alice.ID,
		To:        []string{"bob@example.com"},
		Bcc:       []string{"audit@example.com"},
		Subject:   "Lunch",
		Body:      "noon?",
	})
	require.NoError(t, err)
	assert.False(t, res.Encrypted)
	assert.False(t, res.Signed)

	require.Equal(t, 1, e.srv.SentCount())
	out := e.srv.Sent[0]
	assert.Equal(t, "alice@example.com", out.From)
	assert.Equal(t, "noon?", out.BodyText)
	assert.Contains(t, out.MessageID, "@example.com")
	assert.Equal(t, "imap-secret-alice@example.com", e.srv.LastConfig.Password)

	detail, err := e.mail.GetMessage(ctx, alice.ID, res.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "noon?", detail.Body)
	assert.True(t, detail.Message.IsSeen)
	assert.Equal(t, []string{"bob@example.com"}, detail.Message.Recipients)

	sent, err := e.mail.ListMessages(ctx, alice.ID, common.SentFolder, 0, 0)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "Lunch", sent[0].Subject)

	require.Len(t, events.OfKind[events.NewMessage](e.rec), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.MessagesSent))
}

func TestSend_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")

	_, err := e.mail.Send(ctx, SendRequest{AccountID: alice.ID, Body: "x"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = e.mail.Send(ctx, SendRequest{AccountID: alice.ID, To: []string{"not-an-address"}})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = e.mail.Send(ctx, SendRequest{AccountID: 999, To: []string{"bob@example.com"}})
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Zero(t, e.srv.SentCount())
}

func TestSend_EncryptedSignedWithAttachment(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")
	e.addKey(t, alice.ID)

	res, err := e.mail.Send(ctx, SendRequest{
		AccountID: alice.ID,
		To:        []string{"alice@example.com"},
		Subject:   "note to self",
		Body:      "launch codes",
		Encrypt:   true,
		Sign:      true,
		Attachments: []SendAttachment{
			{FileName: "codes.txt", ContentType: "text/plain", Data: []byte("0000")},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Encrypted)
	assert.True(t, res.Signed)

	wrapped, err := e.store.Repos().WrappedKeys.ListByMessage(ctx, res.MessageID)
	require.NoError(t, err)
	require.Len(t, wrapped, 1)
	assert.Equal(t, "alice@example.com", wrapped[0].RecipientEmail)

	detail, err := e.mail.GetMessage(ctx, alice.ID, res.MessageID)
	require.NoError(t, err)
	assert.True(t, detail.Message.IsEncrypted)
	assert.Empty(t, detail.Message.BodyText)
	assert.True(t, detail.Decrypted)
	assert.Equal(t, "launch codes", detail.Body)
	assert.True(t, detail.SignatureChecked)
	assert.True(t, detail.SignatureValid)

	require.Len(t, detail.Attachments, 1)
	att, data, err := e.mail.AttachmentData(ctx, alice.ID, detail.Attachments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "codes.txt", att.FileName)
	assert.Equal(t, []byte("0000"), data)
}

func TestSend_EncryptWithoutRecipientKeyStoresPlaintext(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")

	res, err := e.mail.Send(ctx, SendRequest{
		AccountID: alice.ID,
		To:        []string{"stranger@example.org"},
		Subject:   "hi",
		Body:      "in the clear",
		Encrypt:   true,
	})
	require.NoError(t, err)
	assert.False(t, res.Encrypted)

	stored, err := e.store.Repos().Messages.Get(ctx, res.MessageID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsEncrypted)
	assert.Equal(t, "in the clear", stored.BodyText)
	assert.Empty(t, stored.BodyBlob)

	wrapped, err := e.store.Repos().WrappedKeys.ListByMessage(ctx, res.MessageID)
	require.NoError(t, err)
	assert.Empty(t, wrapped)

	require.Equal(t, 1, e.srv.SentCount())
	assert.Equal(t, "in the clear", e.srv.Sent[0].BodyText)

	info := notifications(e.rec, events.LevelInfo)
	require.Len(t, info, 1)
	assert.Contains(t, info[0].Message, "No public key")
}

func TestSend_SMTPFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")
	e.srv.SendErr = errors.New("550 mailbox unavailable")

	_, err := e.mail.Send(ctx, SendRequest{AccountID: alice.ID, To: []string{"bob@example.com"}, Body: "x"})
	assert.ErrorIs(t, err, common.ErrCore)

	msgs, err := e.mail.ListMessages(ctx, alice.ID, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NotEmpty(t, notifications(e.rec, events.LevelError))
}

func TestSend_PersistFailureRemovesBlobs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")
	e.failAttachmentInserts(t)

	_, err := e.mail.Send(ctx, SendRequest{
		AccountID: alice.ID,
		To:        []string{"bob@example.com"},
		Body:      "see attached",
		Attachments: []SendAttachment{
			{FileName: "a.txt", Data: []byte("a")},
			{FileName: "b.txt", Data: []byte("b")},
		},
	})
	assert.ErrorIs(t, err, common.ErrCore)
	assert.Empty(t, e.blobFiles(t))

	msgs, err := e.mail.ListMessages(ctx, alice.ID, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendAsync(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")

	out := <-e.mail.SendAsync(ctx, SendRequest{AccountID: alice.ID, To: []string{"bob@example.com"}, Body: "async"})
	require.NoError(t, out.Err)
	assert.NotZero(t, out.Value.MessageID)

	out = <-e.mail.SendAsync(ctx, SendRequest{AccountID: alice.ID})
	assert.ErrorIs(t, out.Err, common.ErrValidation)
}

func TestMessages_ListSeenDeleteAndOwnership(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t).unlocked(t)
	alice := e.addAccount(t, "alice@example.com")
	bob := e.addAccount(t, "bob@example.com")

	var ids []int64
	for _, subj := range []string{"one", "two", "three"} {
		res, err := e.mail.Send(ctx, SendRequest{AccountID: alice.ID, To: []string{"bob@example.com"}, Subject: subj})
		require.NoError(t, err)
		ids = append(ids, res.MessageID)
	}

	page, err := e.mail.ListMessages(ctx, alice.ID, common.SentFolder, 0, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	page, err = e.mail.ListMessages(ctx, alice.ID, common.SentFolder, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	page, err = e.mail.ListMessages(ctx, alice.ID, common.SentFolder, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	none, err := e.mail.ListMessages(ctx, alice.ID, "NoSuchFolder", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, e.mail.MarkSeen(ctx, alice.ID, ids[0], false))
	detail, err := e.mail.GetMessage(ctx, alice.ID, ids[0])
	require.NoError(t, err)
	assert.False(t, detail.Message.IsSeen)

	require.NoError(t, e.mail.DeleteMessage(ctx, alice.ID, ids[1]))
	all, err := e.mail.ListMessages(ctx, alice.ID, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, m := range all {
		assert.NotEqual(t, ids[1], m.ID)
	}

	// Messages of another account are invisible.
	_, err = e.mail.GetMessage(ctx, bob.ID, ids[0])
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, e.mail.DeleteMessage(ctx, bob.ID, ids[0]), common.ErrNotFound)
	assert.ErrorIs(t, e.mail.MarkSeen(ctx, bob.ID, ids[0], true), common.ErrNotFound)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, items, paginate(items, 0, 0))
	assert.Equal(t, []int{1, 2}, paginate(items, -1, 2))
	assert.Equal(t, []int{5}, paginate(items, 2, 2))
	assert.Nil(t, paginate(items, 3, 2))
}
