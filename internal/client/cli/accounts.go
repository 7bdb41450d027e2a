package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/services"
	"github.com/dmitrijs2005/gophmail/internal/cryptox"
)

func (a *App) newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parseID(args []string, what string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("usage: %s <id>", what)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

// AddAccount configures a mailbox. Values not given as flags are prompted
// for; the mail password is always read from the terminal.
//
//	addaccount [-email e] [-name n] [-user u] [-imap host] [-imap-port p]
//	           [-smtp host] [-smtp-port p] [-security tls|starttls|none] [-test]
func (a *App) AddAccount(ctx context.Context, args []string) error {
	fs := a.newFlags("addaccount")
	email := fs.String("email", "", "email address")
	name := fs.String("name", "", "display name")
	user := fs.String("user", "", "login name, defaults to the email")
	imapHost := fs.String("imap", "", "IMAP host")
	imapPort := fs.Int("imap-port", 993, "IMAP port")
	smtpHost := fs.String("smtp", "", "SMTP host")
	smtpPort := fs.Int("smtp-port", 465, "SMTP port")
	security := fs.String("security", string(models.SecurityTLS), "tls, starttls or none")
	test := fs.Bool("test", false, "log in after saving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = GetSimpleText(a.reader, "Email address", a.out); err != nil {
			return err
		}
	}
	domain := ""
	if i := strings.LastIndex(*email, "@"); i >= 0 {
		domain = (*email)[i+1:]
	}
	if *imapHost == "" {
		if *imapHost, err = GetTextDefault(a.reader, "IMAP host", prefixed("imap.", domain), a.out); err != nil {
			return err
		}
	}
	if *smtpHost == "" {
		if *smtpHost, err = GetTextDefault(a.reader, "SMTP host", prefixed("smtp.", domain), a.out); err != nil {
			return err
		}
	}

	pw, err := GetPassword(a.out, "Mail password")
	if err != nil {
		return err
	}
	defer cryptox.SecretBytes(pw).Wipe()

	acc, err := a.core.Accounts.CreateAccount(ctx, services.AccountInput{
		Email:       *email,
		DisplayName: *name,
		Username:    *user,
		Password:    string(pw),
		IMAPHost:    *imapHost,
		IMAPPort:    *imapPort,
		SMTPHost:    *smtpHost,
		SMTPPort:    *smtpPort,
		Security:    models.Security(*security),
	})
	if err != nil {
		return err
	}
	a.setAccount(acc)
	a.printf("Account #%d %s added and selected.\n", acc.ID, acc.Email)

	if *test {
		return a.TestAccount(ctx)
	}
	return nil
}

func prefixed(prefix, domain string) string {
	if domain == "" {
		return ""
	}
	return prefix + domain
}

// Accounts lists the configured mailboxes; the selected one is starred.
func (a *App) Accounts(ctx context.Context) error {
	accs, err := a.core.Accounts.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accs) == 0 {
		a.printf("No accounts yet.\n")
		return nil
	}
	cur := a.currentAccount()
	for _, acc := range accs {
		mark := " "
		if cur != nil && cur.ID == acc.ID {
			mark = "*"
		}
		a.printf("%s %d\t%s\t%s:%d\t%s:%d\t%s\n", mark, acc.ID, acc.Email,
			acc.IMAPHost, acc.IMAPPort, acc.SMTPHost, acc.SMTPPort, acc.Security)
	}
	return nil
}

// Use selects the account mail commands operate on.
func (a *App) Use(ctx context.Context, args []string) error {
	id, err := parseID(args, "use")
	if err != nil {
		return err
	}
	acc, err := a.core.Accounts.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	a.setAccount(acc)
	a.printf("Using %s.\n", acc.Email)
	return nil
}

// TestAccount logs in to the selected account's servers.
func (a *App) TestAccount(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	if err := a.core.Accounts.TestConnection(ctx, acc.ID); err != nil {
		return err
	}
	a.printf("Connection to %s OK.\n", acc.IMAPHost)
	return nil
}

// SetAccountPassword replaces the stored mail password of the selected account.
func (a *App) SetAccountPassword(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	pw, err := GetPassword(a.out, "New mail password")
	if err != nil {
		return err
	}
	defer cryptox.SecretBytes(pw).Wipe()

	if err := a.core.Accounts.UpdateCredential(ctx, acc.ID, string(pw)); err != nil {
		return err
	}
	a.printf("Mail password updated.\n")
	return nil
}

// RemoveAccount deletes an account with everything stored for it.
func (a *App) RemoveAccount(ctx context.Context, args []string) error {
	id, err := parseID(args, "rmaccount")
	if err != nil {
		return err
	}
	if err := a.core.Accounts.DeleteAccount(ctx, id); err != nil {
		return err
	}
	if cur := a.currentAccount(); cur != nil && cur.ID == id {
		a.setAccount(nil)
	}
	a.printf("Account #%d removed.\n", id)
	return nil
}
