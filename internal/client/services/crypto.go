package services

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/cryptox"
	"github.com/dmitrijs2005/gophmail/internal/keydirectory"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/metrics"
)

// EncryptRequest describes an outgoing body to protect.
type EncryptRequest struct {
	AccountID int64
	To        []string
	Cc        []string
	Bcc       []string
	Body      string
	Encrypt   bool
	Sign      bool
}

// EncryptedOutgoing is what the send path persists. When Encrypted is false
// the body must be stored as plaintext. WrappedKeys have no MessageID yet.
type EncryptedOutgoing struct {
	Encrypted   bool
	BodyBlob    string
	WrappedKeys []*models.WrappedMessageKey
	Signature   []byte
}

// DecryptResult is the readable form of a stored message body. Body is
// empty when an encrypted message could not be decrypted.
type DecryptResult struct {
	Body             string
	Decrypted        bool
	SignatureChecked bool
	SignatureValid   bool
}

// MessageCryptoService runs the hybrid body encryption of outgoing mail and
// its inverse for stored mail. Neither direction fails the caller: crypto
// problems degrade to plaintext, unsigned, or an empty body, and are
// reported through notifications.
type MessageCryptoService interface {
	EncryptOutgoing(ctx context.Context, req EncryptRequest) *EncryptedOutgoing
	DecryptIncoming(ctx context.Context, msg *models.Message) DecryptResult
}

type messageCryptoService struct {
	repos     *repositories.Repositories
	directory keydirectory.Directory
	master    MasterPasswordService
	vault     KeyVaultService
	notify    NotificationService
	metrics   *metrics.Metrics
	log       logging.Logger
}

func NewMessageCryptoService(repos *repositories.Repositories, directory keydirectory.Directory,
	master MasterPasswordService, vault KeyVaultService, notify NotificationService,
	m *metrics.Metrics, log logging.Logger) MessageCryptoService {
	return &messageCryptoService{
		repos:     repos,
		directory: directory,
		master:    master,
		vault:     vault,
		notify:    notify,
		metrics:   m,
		log:       log,
	}
}

var errNoRecipientKey = errors.New("no public key for recipient")

// distinctRecipients merges to, cc and bcc, dropping case-insensitive
// duplicates and keeping first-seen order.
func distinctRecipients(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, r := range l {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			k := strings.ToLower(r)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func (s *messageCryptoService) EncryptOutgoing(ctx context.Context, req EncryptRequest) *EncryptedOutgoing {
	out := &EncryptedOutgoing{}

	if req.Encrypt {
		blob, wrapped, err := s.encryptBody(ctx, req)
		switch {
		case errors.Is(err, errNoRecipientKey):
			s.metrics.CryptoFallback(metrics.FallbackNoRecipientKey)
			s.notify.Info(ctx, "No public key for recipient(s). Sending unencrypted.")
		case err != nil:
			s.metrics.CryptoFallback(metrics.FallbackEncryptFailed)
			s.notify.Error(ctx, "Encryption failed, sending plaintext", err)
		default:
			out.Encrypted = true
			out.BodyBlob = blob
			for _, r := range distinctRecipients(req.To, req.Cc, req.Bcc) {
				out.WrappedKeys = append(out.WrappedKeys, &models.WrappedMessageKey{
					RecipientEmail: r,
					WrappedKeyBlob: wrapped,
				})
			}
		}
	}

	if req.Sign {
		sig, err := s.sign(ctx, req.AccountID, []byte(req.Body))
		switch {
		case errors.Is(err, common.ErrLocked):
			s.metrics.CryptoFallback(metrics.FallbackUnsigned)
			s.notify.Info(ctx, "Master password is locked. Sending without signature.")
		case errors.Is(err, common.ErrNotFound):
			s.metrics.CryptoFallback(metrics.FallbackUnsigned)
			s.notify.Info(ctx, "No private key for account. Sending without signature.")
		case err != nil:
			s.metrics.CryptoFallback(metrics.FallbackUnsigned)
			s.notify.Error(ctx, "Signing failed, continuing without signature", err)
		default:
			out.Signature = sig
		}
	}

	return out
}

// encryptBody encrypts the body under a fresh DES key and wraps that key for
// the first "to" recipient only.
func (s *messageCryptoService) encryptBody(ctx context.Context, req EncryptRequest) (string, string, error) {
	dek, err := cryptox.GenerateLegacyKey()
	if err != nil {
		return "", "", err
	}
	defer dek.Wipe()

	ct, err := cryptox.LegacyEncrypt(dek, []byte(req.Body))
	if err != nil {
		return "", "", err
	}

	if len(req.To) == 0 || s.directory == nil {
		return "", "", errNoRecipientKey
	}
	first := req.To[0]
	rec, err := s.directory.FindPublicKeyByEmail(ctx, first)
	if err != nil {
		return "", "", fmt.Errorf("look up key of %s: %w", first, err)
	}
	if rec == nil {
		s.log.Warn(ctx, "no public key for recipient", "email", first)
		return "", "", errNoRecipientKey
	}

	pub, err := cryptox.ParsePublicKeyPEM(rec.PublicKeyPEM)
	if err != nil {
		return "", "", err
	}
	wrapped, err := cryptox.WrapKey(pub, dek)
	if err != nil {
		return "", "", err
	}

	body := cryptox.EncryptedBlob{Algorithm: cryptox.AlgDESECB, Ciphertext: ct}.Encode()
	key := cryptox.EncryptedBlob{Algorithm: cryptox.AlgRSA, Ciphertext: wrapped}.Encode()
	return body, key, nil
}

// primaryPrivateKey decrypts the account's lowest-id key that has private
// material, using the unlocked master password.
func (s *messageCryptoService) primaryPrivateKey(ctx context.Context, accountID int64) (*rsa.PrivateKey, error) {
	rec, err := s.repos.Keys.FindPrimary(ctx, accountID, true)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, common.NotFoundf("private key of account %d", accountID)
	}

	secret, ok := s.master.CurrentSecret()
	if !ok {
		return nil, common.ErrLocked
	}
	defer secret.Wipe()

	der, err := s.vault.DecryptPrivateKey(ctx, rec.ID, secret)
	if err != nil {
		return nil, err
	}
	defer der.Wipe()

	return cryptox.ParsePrivateKey(der)
}

func (s *messageCryptoService) sign(ctx context.Context, accountID int64, body []byte) ([]byte, error) {
	priv, err := s.primaryPrivateKey(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return cryptox.Sign(priv, body)
}

func (s *messageCryptoService) DecryptIncoming(ctx context.Context, msg *models.Message) DecryptResult {
	res := DecryptResult{Body: msg.BodyText}

	if msg.IsEncrypted {
		res.Body = ""
		body, err := s.decryptBody(ctx, msg)
		if err != nil {
			s.metrics.CryptoFallback(metrics.FallbackDecryptFailed)
			s.notify.Error(ctx, "Failed to decrypt message body", err)
		} else {
			res.Body = body
			res.Decrypted = true
		}
	}

	if len(msg.Signature) > 0 && (!msg.IsEncrypted || res.Decrypted) {
		res.SignatureChecked, res.SignatureValid = s.verifySignature(ctx, msg.Sender, []byte(res.Body), msg.Signature)
	}
	return res
}

func (s *messageCryptoService) decryptBody(ctx context.Context, msg *models.Message) (string, error) {
	acc, err := s.repos.Accounts.Get(ctx, msg.AccountID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", common.NotFoundf("account %d", msg.AccountID)
	}

	wk, err := s.repos.WrappedKeys.Find(ctx, msg.ID, acc.Email)
	if err != nil {
		return "", err
	}
	if wk == nil {
		if wk, err = s.repos.WrappedKeys.FindAny(ctx, msg.ID); err != nil {
			return "", err
		}
	}
	if wk == nil {
		return "", common.NotFoundf("wrapped key of message %d", msg.ID)
	}

	priv, err := s.primaryPrivateKey(ctx, msg.AccountID)
	if err != nil {
		return "", err
	}

	wrapped, err := cryptox.DecodeBlob(wk.WrappedKeyBlob)
	if err != nil {
		return "", err
	}
	dek, err := cryptox.UnwrapKey(priv, wrapped.Ciphertext)
	if err != nil {
		return "", err
	}
	defer dek.Wipe()

	body, err := cryptox.DecodeBlob(msg.BodyBlob)
	if err != nil {
		return "", err
	}
	plain, err := cryptox.LegacyDecrypt(dek, body.Ciphertext)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// verifySignature reports (checked, valid). Without a resolvable sender key
// the signature is left unchecked.
func (s *messageCryptoService) verifySignature(ctx context.Context, sender string, body, sig []byte) (bool, bool) {
	if s.directory == nil || sender == "" {
		return false, false
	}
	rec, err := s.directory.FindPublicKeyByEmail(ctx, sender)
	if err != nil || rec == nil {
		return false, false
	}
	pub, err := cryptox.ParsePublicKeyPEM(rec.PublicKeyPEM)
	if err != nil {
		return false, false
	}
	return true, cryptox.Verify(pub, body, sig)
}
