// Package services holds the key server business logic: publishing,
// looking up and verifying public keys.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/cryptox"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/server/auth"
	"github.com/dmitrijs2005/gophmail/internal/server/config"
	"github.com/dmitrijs2005/gophmail/internal/server/models"
	"github.com/dmitrijs2005/gophmail/internal/server/repositories/repomanager"
)

var validate = validator.New()

// PublishRequest is the body of POST /api/keys.
type PublishRequest struct {
	Email        string `json:"email" validate:"required,email"`
	PublicKeyPEM string `json:"publicKeyPem" validate:"required"`
}

type KeyService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	mailer        Mailer
	log           logging.Logger
	jwtSecret     []byte
	verify        bool
	tokenValidity time.Duration
	publicURL     string
	now           func() time.Time
}

// NewKeyService wires the service. db may be nil with an in-memory manager;
// mailer may be nil only when key verification is off.
func NewKeyService(db *sql.DB, m repomanager.RepositoryManager, mailer Mailer, log logging.Logger, cfg *config.Config) *KeyService {
	return &KeyService{
		db:            db,
		repomanager:   m,
		mailer:        mailer,
		log:           log,
		jwtSecret:     []byte(cfg.SecretKey),
		verify:        cfg.VerifyKeys,
		tokenValidity: cfg.TokenValidity,
		publicURL:     strings.TrimRight(cfg.PublicURL, "/"),
		now:           time.Now,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateRequest(req *PublishRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.Validationf("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
	}
	return common.Validationf("%s", strings.Join(msgs, ", "))
}

// Publish stores a public key for req.Email. With verification on the key is
// kept pending and a confirmation link is mailed to the address; the
// returned key then has Verified false.
func (s *KeyService) Publish(ctx context.Context, req PublishRequest) (*models.PublicKey, error) {
	req.Email = normalizeEmail(req.Email)
	req.PublicKeyPEM = strings.TrimSpace(req.PublicKeyPEM)
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	if _, err := cryptox.ParsePublicKeyPEM(req.PublicKeyPEM); err != nil {
		return nil, common.Validationf("publicKeyPem is not a valid public key")
	}

	key := &models.PublicKey{
		Email:        req.Email,
		PublicKeyPEM: req.PublicKeyPEM,
		Verified:     !s.verify,
	}
	if key.Verified {
		key.VerifiedAt = s.now().UTC()
	}

	key, err := s.repomanager.Keys(s.db).Create(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("error storing key: %w", err)
	}

	if !s.verify {
		s.log.Info(ctx, "key published", "email", key.Email, "id", key.ID)
		return key, nil
	}

	token, err := auth.GenerateToken(key.ID, key.Email, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}
	link := s.publicURL + "/api/keys/verify?token=" + url.QueryEscape(token)
	if err := s.mailer.SendVerification(ctx, key.Email, link); err != nil {
		return nil, fmt.Errorf("error mailing verification link: %w", err)
	}
	s.log.Info(ctx, "key pending verification", "email", key.Email, "id", key.ID)
	return key, nil
}

// Lookup returns the verified keys of email, newest first. An address
// without keys yields common.ErrNotFound.
func (s *KeyService) Lookup(ctx context.Context, email string) ([]*models.PublicKey, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, common.Validationf("email is required")
	}

	keys, err := s.repomanager.Keys(s.db).ListByEmail(ctx, email, true)
	if err != nil {
		return nil, fmt.Errorf("error listing keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, common.NotFoundf("keys of %s", email)
	}
	return keys, nil
}

// Verify confirms the key named by token. Confirming twice is not an error.
func (s *KeyService) Verify(ctx context.Context, token string) (*models.PublicKey, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Keys(s.db)
	key, err := repo.Get(ctx, claims.KeyID)
	if err != nil {
		return nil, err
	}
	if key.Email != claims.Email {
		return nil, auth.ErrInvalidToken
	}
	if key.Verified {
		return key, nil
	}

	at := s.now().UTC()
	if err := repo.MarkVerified(ctx, key.ID, at); err != nil {
		return nil, err
	}
	key.Verified = true
	key.VerifiedAt = at
	s.log.Info(ctx, "key verified", "email", key.Email, "id", key.ID)
	return key, nil
}
