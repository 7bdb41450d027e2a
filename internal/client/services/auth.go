// Package services contains the application services of the mail core.
// This file defines the master password service: first-run setup, unlock,
// lock, and atomic rotation of every secret sealed under the master password.
package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/cryptox"
	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/dmitrijs2005/gophmail/internal/logging"
)

// MasterPasswordService guards the master password.
//
// Contract:
//   - Initialize: create the verifier once; fails with common.ErrAlreadyInitialized.
//   - Verify: false (not an error) for a wrong password or before Initialize.
//     A match unlocks the service.
//   - ChangeMasterPassword: re-seal every private key and account credential
//     under the new password and swap the verifier in one transaction.
//   - CurrentSecret: a copy of the unlocked password the caller must Wipe.
//   - Lock: wipe the cached password.
type MasterPasswordService interface {
	IsInitialized(ctx context.Context) (bool, error)
	Initialize(ctx context.Context, password []byte) error
	Verify(ctx context.Context, password []byte) (bool, error)
	ChangeMasterPassword(ctx context.Context, oldPassword, newPassword []byte) error
	CurrentSecret() (cryptox.SecretBytes, bool)
	Lock()
}

type masterPasswordService struct {
	store      *repositories.Store
	iterations int
	pub        events.Publisher
	log        logging.Logger

	mu       sync.Mutex
	verifier *models.MasterPasswordVerifier
	unlocked cryptox.SecretBytes
}

func NewMasterPasswordService(store *repositories.Store, iterations int, pub events.Publisher, log logging.Logger) MasterPasswordService {
	if iterations <= 0 {
		iterations = common.DefaultKDFIterations
	}
	return &masterPasswordService{store: store, iterations: iterations, pub: pub, log: log}
}

// loadLocked returns the cached verifier, reading it on first use.
func (s *masterPasswordService) loadLocked(ctx context.Context) (*models.MasterPasswordVerifier, error) {
	if s.verifier != nil {
		return s.verifier, nil
	}
	v, err := s.store.Repos().Verifier.Get(ctx)
	if err != nil {
		return nil, err
	}
	s.verifier = v
	return v, nil
}

func (s *masterPasswordService) IsInitialized(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (s *masterPasswordService) cacheLocked(password []byte) {
	if s.unlocked != nil {
		s.unlocked.Wipe()
	}
	s.unlocked = cryptox.SecretBytes(password).Clone()
}

func (s *masterPasswordService) Initialize(ctx context.Context, password []byte) error {
	if len(password) == 0 {
		return common.Validationf("master password must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return common.ErrAlreadyInitialized
	}

	v, err := s.newVerifier(password)
	if err != nil {
		return err
	}
	if err := s.store.Repos().Verifier.Create(ctx, v); err != nil {
		return err
	}

	s.verifier = v
	s.cacheLocked(password)
	s.log.Info(ctx, "master password initialized")
	return nil
}

func (s *masterPasswordService) newVerifier(password []byte) (*models.MasterPasswordVerifier, error) {
	salt, err := cryptox.NewSalt()
	if err != nil {
		return nil, err
	}
	kek := cryptox.DeriveKey(password, salt, s.iterations)
	defer kek.Wipe()

	now := time.Now().UTC()
	return &models.MasterPasswordVerifier{
		Salt:       salt,
		Hash:       cryptox.VerifierHash(kek),
		Iterations: s.iterations,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// verifyLocked derives the KEK with the stored salt and compares hashes in
// constant time.
func (s *masterPasswordService) verifyLocked(ctx context.Context, password []byte) (bool, error) {
	v, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}

	iterations := v.Iterations
	if iterations <= 0 {
		iterations = s.iterations
	}
	kek := cryptox.DeriveKey(password, v.Salt, iterations)
	defer kek.Wipe()

	if subtle.ConstantTimeCompare(cryptox.VerifierHash(kek), v.Hash) == 0 {
		return false, nil
	}
	s.cacheLocked(password)
	return true, nil
}

func (s *masterPasswordService) Verify(ctx context.Context, password []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyLocked(ctx, password)
}

type resealedKey struct {
	id     int64
	sealed cryptox.Sealed
}

type resealedCredential struct {
	accountID int64
	sealed    cryptox.Sealed
}

// ChangeMasterPassword publishes MasterPasswordChanged once the lock is
// released, since subscribers may call back into the service.
func (s *masterPasswordService) ChangeMasterPassword(ctx context.Context, oldPassword, newPassword []byte) error {
	if len(newPassword) == 0 {
		return common.Validationf("new master password must not be empty")
	}

	when, err := s.changeMasterPassword(ctx, oldPassword, newPassword)
	if err != nil {
		return err
	}
	s.pub.Publish(events.MasterPasswordChanged{When: when})
	return nil
}

// changeMasterPassword stages every re-sealed secret in memory first, so a
// failure before the final transaction leaves storage untouched.
func (s *masterPasswordService) changeMasterPassword(ctx context.Context, oldPassword, newPassword []byte) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.verifyLocked(ctx, oldPassword)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, common.ErrUnauthorized
	}

	repos := s.store.Repos()

	keyRecords, err := repos.Keys.ListWithPrivateKey(ctx)
	if err != nil {
		return time.Time{}, err
	}
	stagedKeys := make([]resealedKey, 0, len(keyRecords))
	for _, k := range keyRecords {
		sealed, err := s.reseal(oldPassword, newPassword, k.Salt, k.EncryptedPrivateKey, k.Iterations)
		if err != nil {
			return time.Time{}, fmt.Errorf("re-encrypt key %d: %w", k.ID, err)
		}
		stagedKeys = append(stagedKeys, resealedKey{id: k.ID, sealed: sealed})
	}

	accs, err := repos.Accounts.List(ctx)
	if err != nil {
		return time.Time{}, err
	}
	var stagedCreds []resealedCredential
	for _, a := range accs {
		if a.CredentialBlob == "" {
			continue
		}
		sealed, err := s.reseal(oldPassword, newPassword, a.CredentialSalt, a.CredentialBlob, a.CredentialIterations)
		if err != nil {
			return time.Time{}, fmt.Errorf("re-encrypt credential of account %d: %w", a.ID, err)
		}
		stagedCreds = append(stagedCreds, resealedCredential{accountID: a.ID, sealed: sealed})
	}

	v, err := s.newVerifier(newPassword)
	if err != nil {
		return time.Time{}, err
	}
	v.CreatedAt = s.verifier.CreatedAt

	err = s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		for _, k := range stagedKeys {
			if err := r.Keys.UpdatePrivateKey(ctx, k.id, k.sealed.Salt, k.sealed.Blob, k.sealed.Iterations); err != nil {
				return err
			}
		}
		for _, c := range stagedCreds {
			if err := r.Accounts.UpdateCredential(ctx, c.accountID, c.sealed.Salt, c.sealed.Blob, c.sealed.Iterations); err != nil {
				return err
			}
		}
		return r.Verifier.Update(ctx, v)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("change master password: %w", err)
	}

	s.verifier = v
	s.cacheLocked(newPassword)
	s.log.Info(ctx, "master password changed", "keys", len(stagedKeys), "credentials", len(stagedCreds))
	return v.UpdatedAt, nil
}

// reseal opens blob with the work factor it was sealed with and seals it
// again with the configured one.
func (s *masterPasswordService) reseal(oldPassword, newPassword, salt []byte, blob string, iterations int) (cryptox.Sealed, error) {
	plain, err := cryptox.OpenWithPassword(oldPassword, salt, blob, iterations)
	if err != nil {
		return cryptox.Sealed{}, err
	}
	defer plain.Wipe()
	return cryptox.SealWithPassword(newPassword, plain, s.iterations)
}

func (s *masterPasswordService) CurrentSecret() (cryptox.SecretBytes, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked == nil {
		return nil, false
	}
	return s.unlocked.Clone(), true
}

func (s *masterPasswordService) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked != nil {
		s.unlocked.Wipe()
		s.unlocked = nil
	}
}
