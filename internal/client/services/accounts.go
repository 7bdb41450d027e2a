package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/attachments"
	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/cryptox"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/transport"
)

// AccountInput is a new mailbox configuration. Password is the mail-server
// login password; it is stored sealed under the master password.
type AccountInput struct {
	Email       string          `validate:"required,email"`
	DisplayName string          `validate:"max=200"`
	Username    string          `validate:"omitempty,max=320"`
	Password    string          `validate:"required"`
	IMAPHost    string          `validate:"required"`
	IMAPPort    int             `validate:"required,min=1,max=65535"`
	SMTPHost    string          `validate:"required"`
	SMTPPort    int             `validate:"required,min=1,max=65535"`
	Security    models.Security `validate:"omitempty,oneof=tls starttls none"`
}

// AccountService manages mailboxes and their sealed login credential. Every
// operation that touches the credential requires an unlocked master password
// and fails with common.ErrLocked otherwise.
type AccountService interface {
	CreateAccount(ctx context.Context, in AccountInput) (*models.Account, error)
	UpdateCredential(ctx context.Context, accountID int64, password string) error
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	DeleteAccount(ctx context.Context, accountID int64) error
	// ResolveConfig returns the transport configuration with the decrypted
	// login password.
	ResolveConfig(ctx context.Context, accountID int64) (transport.Config, error)
	// TestConnection logs in and lists folders.
	TestConnection(ctx context.Context, accountID int64) error
}

type accountService struct {
	repos      *repositories.Repositories
	master     MasterPasswordService
	transports transport.Factory
	blobs      attachments.Store
	iterations int
	log        logging.Logger
}

// NewAccountService builds the service. blobs may be nil when attachment
// bytes are not kept.
func NewAccountService(repos *repositories.Repositories, master MasterPasswordService, transports transport.Factory,
	blobs attachments.Store, iterations int, log logging.Logger) AccountService {
	if iterations <= 0 {
		iterations = common.DefaultKDFIterations
	}
	return &accountService{repos: repos, master: master, transports: transports, blobs: blobs, iterations: iterations, log: log}
}

func (s *accountService) seal(password string) (cryptox.Sealed, error) {
	secret, ok := s.master.CurrentSecret()
	if !ok {
		return cryptox.Sealed{}, common.ErrLocked
	}
	defer secret.Wipe()
	return cryptox.SealWithPassword(secret, []byte(password), s.iterations)
}

func (s *accountService) CreateAccount(ctx context.Context, in AccountInput) (*models.Account, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	sealed, err := s.seal(in.Password)
	if err != nil {
		return nil, err
	}

	username := in.Username
	if username == "" {
		username = in.Email
	}
	security := in.Security
	if security == "" {
		security = models.SecurityTLS
	}

	acc, err := s.repos.Accounts.Save(ctx, &models.Account{
		Email:                strings.TrimSpace(in.Email),
		DisplayName:          in.DisplayName,
		Username:             username,
		IMAPHost:             in.IMAPHost,
		IMAPPort:             in.IMAPPort,
		SMTPHost:             in.SMTPHost,
		SMTPPort:             in.SMTPPort,
		Security:             security,
		CredentialSalt:       sealed.Salt,
		CredentialBlob:       sealed.Blob,
		CredentialIterations: sealed.Iterations,
		CreatedAt:            time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "account created", "account_id", acc.ID, "email", acc.Email)
	return acc, nil
}

func (s *accountService) UpdateCredential(ctx context.Context, accountID int64, password string) error {
	if password == "" {
		return common.Validationf("password is required")
	}
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return err
	}
	sealed, err := s.seal(password)
	if err != nil {
		return err
	}
	return s.repos.Accounts.UpdateCredential(ctx, accountID, sealed.Salt, sealed.Blob, sealed.Iterations)
}

func (s *accountService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	acc, err := s.repos.Accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, common.NotFoundf("account %d", accountID)
	}
	return acc, nil
}

func (s *accountService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	return s.repos.Accounts.List(ctx)
}

// DeleteAccount removes the account rows first and its attachment files
// after, so a failed delete never leaves rows pointing at missing files.
func (s *accountService) DeleteAccount(ctx context.Context, accountID int64) error {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return err
	}
	keys, err := s.repos.Attachments.ListStorageKeysByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.repos.Accounts.Delete(ctx, accountID); err != nil {
		return err
	}
	deleteBlobs(ctx, s.blobs, s.log, keys)
	s.log.Info(ctx, "account deleted", "account_id", accountID, "attachments", len(keys))
	return nil
}

func (s *accountService) ResolveConfig(ctx context.Context, accountID int64) (transport.Config, error) {
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return transport.Config{}, err
	}

	cfg := transport.Config{
		Email:    acc.Email,
		Name:     acc.DisplayName,
		Username: acc.Username,
		IMAPHost: acc.IMAPHost,
		IMAPPort: acc.IMAPPort,
		SMTPHost: acc.SMTPHost,
		SMTPPort: acc.SMTPPort,
		Security: acc.Security,
	}
	if acc.CredentialBlob == "" {
		return cfg, nil
	}

	secret, ok := s.master.CurrentSecret()
	if !ok {
		return transport.Config{}, common.ErrLocked
	}
	defer secret.Wipe()

	pw, err := cryptox.OpenWithPassword(secret, acc.CredentialSalt, acc.CredentialBlob, acc.CredentialIterations)
	if err != nil {
		return transport.Config{}, fmt.Errorf("decrypt credential of account %d: %w", accountID, err)
	}
	cfg.Password = string(pw)
	pw.Wipe()
	return cfg, nil
}

func (s *accountService) TestConnection(ctx context.Context, accountID int64) error {
	cfg, err := s.ResolveConfig(ctx, accountID)
	if err != nil {
		return err
	}
	t := s.transports()
	if err := t.Connect(ctx, cfg); err != nil {
		return fmt.Errorf("connect %s: %w", cfg, err)
	}
	defer t.Disconnect()

	if _, err := t.ListFolders(ctx); err != nil {
		return fmt.Errorf("list folders: %w", err)
	}
	return nil
}
