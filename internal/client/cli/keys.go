package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

// KeyGen creates an RSA key pair for the selected account, sealed under the
// unlocked master password.
func (a *App) KeyGen(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	secret, ok := a.core.Master.CurrentSecret()
	if !ok {
		return common.ErrLocked
	}
	defer secret.Wipe()

	a.printf("Generating key pair for %s...\n", acc.Email)
	meta, err := a.core.Vault.GenerateKeyPair(ctx, acc.ID, secret)
	if err != nil {
		return err
	}
	a.printf("Key #%d created.\n", meta.ID)
	return nil
}

// ImportKey pins a PEM encoded public key read from a file to the selected
// account.
func (a *App) ImportKey(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: importkey <file.pem>")
	}
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	pem, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	meta, err := a.core.Vault.ImportPublicKey(ctx, acc.ID, string(pem))
	if err != nil {
		return err
	}
	a.printf("Public key #%d imported.\n", meta.ID)
	return nil
}

// PublishKey uploads the selected account's primary public key.
func (a *App) PublishKey(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	if err := a.core.Vault.PublishPrimaryKey(ctx, acc.ID); err != nil {
		return err
	}
	a.printf("Public key of %s published.\n", acc.Email)
	return nil
}

// Keys lists the selected account's keys.
func (a *App) Keys(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	keys, err := a.core.Vault.ListKeys(ctx, acc.ID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		a.printf("No keys. Run keygen to create one.\n")
		return nil
	}
	for _, k := range keys {
		kind := "public"
		if k.HasPrivate {
			kind = "private+public"
		}
		a.printf("%d\t%s\t%s\n", k.ID, kind, k.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
