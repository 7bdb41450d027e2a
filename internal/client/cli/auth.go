package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/cryptox"
)

var errPasswordMismatch = errors.New("passwords do not match")

// readNewPassword asks for a password twice.
func (a *App) readNewPassword(prompt string) (cryptox.SecretBytes, error) {
	pw, err := GetPassword(a.out, prompt)
	if err != nil {
		return nil, err
	}
	confirm, err := GetPassword(a.out, "Repeat "+prompt)
	defer cryptox.SecretBytes(confirm).Wipe()
	if err != nil {
		cryptox.SecretBytes(pw).Wipe()
		return nil, err
	}
	if !bytes.Equal(pw, confirm) {
		cryptox.SecretBytes(pw).Wipe()
		return nil, errPasswordMismatch
	}
	return pw, nil
}

// Init sets the master password on a fresh database and unlocks it.
func (a *App) Init(ctx context.Context) error {
	pw, err := a.readNewPassword("new master password")
	if err != nil {
		return err
	}
	defer pw.Wipe()

	if err := a.core.Master.Initialize(ctx, pw); err != nil {
		if errors.Is(err, common.ErrAlreadyInitialized) {
			return fmt.Errorf("master password is already set, use unlock")
		}
		return err
	}
	a.printf("Master password set.\n")
	a.startBackground(ctx)
	return nil
}

// Unlock verifies the master password and caches it for the session.
func (a *App) Unlock(ctx context.Context) error {
	pw, err := GetPassword(a.out, "Master password")
	if err != nil {
		return err
	}
	defer cryptox.SecretBytes(pw).Wipe()

	ok, err := a.core.Master.Verify(ctx, pw)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrUnauthorized
	}
	a.printf("Unlocked.\n")
	a.startBackground(ctx)
	return nil
}

// Lock stops auto-sync and forgets the cached master password.
func (a *App) Lock(ctx context.Context) error {
	a.stopBackground()
	a.core.Master.Lock()
	a.printf("Locked.\n")
	return nil
}

// ChangePassword re-seals every stored secret under a new master password.
func (a *App) ChangePassword(ctx context.Context) error {
	old, err := GetPassword(a.out, "Current master password")
	if err != nil {
		return err
	}
	defer cryptox.SecretBytes(old).Wipe()

	pw, err := a.readNewPassword("new master password")
	if err != nil {
		return err
	}
	defer pw.Wipe()

	if err := a.core.Master.ChangeMasterPassword(ctx, old, pw); err != nil {
		return err
	}
	a.printf("Master password changed.\n")
	return nil
}
