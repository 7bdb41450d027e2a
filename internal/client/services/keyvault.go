package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/cryptox"
	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/dmitrijs2005/gophmail/internal/keydirectory"
	"github.com/dmitrijs2005/gophmail/internal/logging"
)

// KeyVaultService manages RSA key records. Private keys are stored sealed
// under a KEK derived from the master password and the record's own salt.
type KeyVaultService interface {
	GenerateKeyPair(ctx context.Context, accountID int64, password []byte) (*models.KeyMetadata, error)
	// DecryptPrivateKey returns PKCS#8 DER bytes; the caller must Wipe them.
	DecryptPrivateKey(ctx context.Context, keyID int64, password []byte) (cryptox.SecretBytes, error)
	// FindPrimary returns the lowest-id key of the account or (nil, nil).
	FindPrimary(ctx context.Context, accountID int64) (*models.KeyRecord, error)
	ImportPublicKey(ctx context.Context, accountID int64, pem string) (*models.KeyMetadata, error)
	ListKeys(ctx context.Context, accountID int64) ([]*models.KeyMetadata, error)
	// PublishPrimaryKey uploads the account's primary public key to the key
	// directory.
	PublishPrimaryKey(ctx context.Context, accountID int64) error
}

type keyVaultService struct {
	repos      *repositories.Repositories
	directory  keydirectory.Directory
	iterations int
	bits       int
	pub        events.Publisher
	log        logging.Logger
}

func NewKeyVaultService(repos *repositories.Repositories, directory keydirectory.Directory, iterations int,
	pub events.Publisher, log logging.Logger) KeyVaultService {
	if iterations <= 0 {
		iterations = common.DefaultKDFIterations
	}
	return &keyVaultService{
		repos:      repos,
		directory:  directory,
		iterations: iterations,
		bits:       cryptox.RSAKeyBits,
		pub:        pub,
		log:        log,
	}
}

func (s *keyVaultService) requireAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	a, err := s.repos.Accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, common.NotFoundf("account %d", accountID)
	}
	return a, nil
}

func (s *keyVaultService) GenerateKeyPair(ctx context.Context, accountID int64, password []byte) (*models.KeyMetadata, error) {
	if _, err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	priv, err := cryptox.GenerateRSAKeyPair(s.bits)
	if err != nil {
		return nil, err
	}
	pem, err := cryptox.EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	der, err := cryptox.MarshalPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	defer der.Wipe()

	sealed, err := cryptox.SealWithPassword(password, der, s.iterations)
	if err != nil {
		return nil, fmt.Errorf("seal private key: %w", err)
	}

	rec, err := s.repos.Keys.Save(ctx, &models.KeyRecord{
		AccountID:           accountID,
		PublicKeyPEM:        pem,
		EncryptedPrivateKey: sealed.Blob,
		Salt:                sealed.Salt,
		Iterations:          sealed.Iterations,
		CreatedAt:           time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "key pair generated", "key_id", rec.ID, "account_id", accountID)
	s.pub.Publish(events.KeyCreated{KeyID: rec.ID, AccountID: accountID, CreatedAt: rec.CreatedAt})
	return rec.Metadata(), nil
}

func (s *keyVaultService) DecryptPrivateKey(ctx context.Context, keyID int64, password []byte) (cryptox.SecretBytes, error) {
	rec, err := s.repos.Keys.Get(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, common.NotFoundf("key %d", keyID)
	}
	if !rec.HasPrivateKey() {
		return nil, common.NotFoundf("private key of key %d", keyID)
	}

	der, err := cryptox.OpenWithPassword(password, rec.Salt, rec.EncryptedPrivateKey, rec.Iterations)
	if err != nil {
		return nil, fmt.Errorf("decrypt key %d: %w", keyID, err)
	}
	return der, nil
}

func (s *keyVaultService) FindPrimary(ctx context.Context, accountID int64) (*models.KeyRecord, error) {
	return s.repos.Keys.FindPrimary(ctx, accountID, false)
}

func (s *keyVaultService) ImportPublicKey(ctx context.Context, accountID int64, pem string) (*models.KeyMetadata, error) {
	if _, err := cryptox.ParsePublicKeyPEM(pem); err != nil {
		return nil, err
	}
	if _, err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	rec, err := s.repos.Keys.Save(ctx, &models.KeyRecord{
		AccountID:    accountID,
		PublicKeyPEM: pem,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.pub.Publish(events.KeyCreated{KeyID: rec.ID, AccountID: accountID, CreatedAt: rec.CreatedAt})
	return rec.Metadata(), nil
}

func (s *keyVaultService) ListKeys(ctx context.Context, accountID int64) ([]*models.KeyMetadata, error) {
	recs, err := s.repos.Keys.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.KeyMetadata, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Metadata())
	}
	return out, nil
}

func (s *keyVaultService) PublishPrimaryKey(ctx context.Context, accountID int64) error {
	if s.directory == nil {
		return common.Validationf("no key directory configured")
	}
	acc, err := s.requireAccount(ctx, accountID)
	if err != nil {
		return err
	}
	primary, err := s.FindPrimary(ctx, accountID)
	if err != nil {
		return err
	}
	if primary == nil {
		return common.NotFoundf("key of account %d", accountID)
	}

	if _, err := s.directory.UploadPublicKey(ctx, acc.Email, primary.PublicKeyPEM); err != nil {
		return fmt.Errorf("publish key of %s: %w", acc.Email, err)
	}
	s.log.Info(ctx, "public key published", "account_id", accountID, "key_id", primary.ID)
	return nil
}
