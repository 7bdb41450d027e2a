package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophmail/internal/client/services"
	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/dmitrijs2005/gophmail/internal/filex"
)

const dateLayout = "2006-01-02 15:04"

// Folders lists the selected account's local folders with their sync cursor.
func (a *App) Folders(ctx context.Context) error {
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	fs, err := a.core.Folders.ListFolders(ctx, acc.ID)
	if err != nil {
		return err
	}
	if len(fs) == 0 {
		a.printf("No folders yet. Run sync to import them.\n")
		return nil
	}
	for _, f := range fs {
		state := "never synced"
		if f.Synced() {
			state = fmt.Sprintf("uid %d", f.LastSyncUID)
		}
		a.printf("%s\t%s\n", f.LocalName, state)
	}
	return nil
}

// Sync fetches new mail for the selected account, or for one folder.
//
//	sync [-async] [folder]
func (a *App) Sync(ctx context.Context, args []string) error {
	fs := a.newFlags("sync")
	async := fs.Bool("async", false, "run in the background")
	if err := fs.Parse(args); err != nil {
		return err
	}
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}

	if folder := fs.Arg(0); folder != "" {
		res, err := a.core.Sync.SyncFolder(ctx, acc.ID, folder)
		if err != nil {
			return err
		}
		a.printSyncResult(res)
		return nil
	}

	if *async {
		ch := a.core.Sync.SyncAccountAsync(ctx, acc.ID)
		a.printf("Sync of %s started in the background.\n", acc.Email)
		go func() {
			out := <-ch
			if out.Err != nil {
				a.printf("Background sync failed: %v\n", out.Err)
				return
			}
			a.printSyncResult(out.Value)
		}()
		return nil
	}

	res, err := a.core.Sync.SyncAccount(ctx, acc.ID)
	a.printSyncResult(res)
	return err
}

func (a *App) printSyncResult(res services.SyncResult) {
	a.printf("Sync done: %d new, %d failed.\n", res.NewMessages, res.Failed)
	for _, e := range res.Errors {
		a.printf("  %s\n", e)
	}
}

// List prints one page of messages, newest first.
//
//	list [-folder name] [-page n] [-size n]
func (a *App) List(ctx context.Context, args []string) error {
	fs := a.newFlags("list")
	folder := fs.String("folder", "", "folder name, all folders when empty")
	page := fs.Int("page", 1, "page number starting at 1")
	size := fs.Int("size", 20, "messages per page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *page < 1 {
		return fmt.Errorf("page must be at least 1")
	}
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}

	msgs, err := a.core.Mail.ListMessages(ctx, acc.ID, *folder, *page-1, *size)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		a.printf("No messages.\n")
		return nil
	}
	for _, m := range msgs {
		flags := ""
		if !m.IsSeen {
			flags += "N"
		}
		if m.IsEncrypted {
			flags += "E"
		}
		a.printf("%d\t%-2s\t%s\t%s\t%s\n", m.ID, flags, m.SentAt.Local().Format(dateLayout), m.Sender, m.Subject)
	}
	return nil
}

// Show prints a message, decrypting it when needed, and marks it seen.
func (a *App) Show(ctx context.Context, args []string) error {
	id, err := parseID(args, "show")
	if err != nil {
		return err
	}
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	d, err := a.core.Mail.GetMessage(ctx, acc.ID, id)
	if err != nil {
		return err
	}
	m := d.Message

	a.printf("From:    %s\n", m.Sender)
	a.printf("To:      %s\n", strings.Join(m.Recipients, ", "))
	if len(m.Cc) > 0 {
		a.printf("Cc:      %s\n", strings.Join(m.Cc, ", "))
	}
	a.printf("Date:    %s\n", m.SentAt.Local().Format(dateLayout))
	a.printf("Subject: %s\n", m.Subject)
	if m.IsEncrypted {
		if d.Decrypted {
			a.printf("Security: encrypted, decrypted\n")
		} else {
			a.printf("Security: encrypted, no key to decrypt\n")
		}
	}
	if d.SignatureChecked {
		if d.SignatureValid {
			a.printf("Signature: valid\n")
		} else {
			a.printf("Signature: INVALID\n")
		}
	}
	a.printf("\n%s\n", d.Body)
	for _, att := range d.Attachments {
		a.printf("[attachment %d] %s (%s, %s)\n", att.ID, att.FileName, att.ContentType, sizeString(att.Size))
	}

	if !m.IsSeen {
		return a.core.Mail.MarkSeen(ctx, acc.ID, id, true)
	}
	return nil
}

func sizeString(n int64) string {
	if n < 0 {
		return "size unknown"
	}
	return fmt.Sprintf("%d bytes", n)
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

// Send composes and sends a message from the selected account. Missing
// recipients and subject are prompted for; the body is read until an
// empty line.
//
//	send [-to a,b] [-cc a] [-bcc a] [-subject s] [-html] [-encrypt] [-sign] [-attach file]...
func (a *App) Send(ctx context.Context, args []string) error {
	fs := a.newFlags("send")
	to := fs.String("to", "", "comma separated recipients")
	cc := fs.String("cc", "", "comma separated copy recipients")
	bcc := fs.String("bcc", "", "comma separated blind copy recipients")
	subject := fs.String("subject", "", "subject line")
	html := fs.Bool("html", false, "the body is HTML")
	encrypt := fs.Bool("encrypt", false, "encrypt for the recipient and the sender")
	sign := fs.Bool("sign", false, "sign with the sender's key")
	var attach multiFlag
	fs.Var(&attach, "attach", "file to attach, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}

	if *to == "" {
		if *to, err = GetSimpleText(a.reader, "To (comma separated)", a.out); err != nil {
			return err
		}
	}
	if *subject == "" {
		if *subject, err = GetSimpleText(a.reader, "Subject", a.out); err != nil {
			return err
		}
	}
	body, err := GetMultiline(a.reader, "Message body", a.out)
	if err != nil {
		return err
	}

	req := services.SendRequest{
		AccountID: acc.ID,
		To:        splitList(*to),
		Cc:        splitList(*cc),
		Bcc:       splitList(*bcc),
		Subject:   *subject,
		Body:      body,
		HTML:      *html,
		Encrypt:   *encrypt,
		Sign:      *sign,
	}
	for _, path := range attach {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		req.Attachments = append(req.Attachments, services.SendAttachment{
			FileName:    filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		})
	}

	res, err := a.core.Mail.Send(ctx, req)
	if err != nil {
		return err
	}
	a.printf("Message #%d sent (encrypted=%t, signed=%t).\n", res.MessageID, res.Encrypted, res.Signed)
	return nil
}

// Delete marks a message deleted.
func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := parseID(args, "delete")
	if err != nil {
		return err
	}
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	return a.core.Mail.DeleteMessage(ctx, acc.ID, id)
}

// SaveAttachment writes an attachment's bytes into dir, the working
// directory by default.
//
//	save <attachment id> [dir]
func (a *App) SaveAttachment(ctx context.Context, args []string) error {
	id, err := parseID(args, "save")
	if err != nil {
		return err
	}
	acc, err := a.requireAccount()
	if err != nil {
		return err
	}
	dir := "."
	if len(args) > 1 {
		dir = args[1]
	}

	att, data, err := a.core.Mail.AttachmentData(ctx, acc.ID, id)
	if err != nil {
		return err
	}
	name := filepath.Base(att.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = fmt.Sprintf("attachment-%d", att.ID)
	}
	path, err := filex.SafeJoin(dir, name)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return err
	}
	a.printf("Saved %s (%d bytes).\n", path, len(data))
	return nil
}

// History prints the events published during this session.
func (a *App) History(ctx context.Context) error {
	evs := a.history.Events()
	if len(evs) == 0 {
		a.printf("Nothing happened yet.\n")
		return nil
	}
	for _, e := range evs {
		a.printf("%s\n", describeEvent(e))
	}
	return nil
}

func describeEvent(e events.Event) string {
	switch ev := e.(type) {
	case events.KeyCreated:
		return fmt.Sprintf("key #%d created for account %d", ev.KeyID, ev.AccountID)
	case events.MasterPasswordChanged:
		return "master password changed"
	case events.SyncStarted:
		return fmt.Sprintf("sync started for account %d", ev.AccountID)
	case events.SyncCompleted:
		return fmt.Sprintf("sync completed for account %d: success=%t %s", ev.AccountID, ev.Success, ev.Details)
	case events.NewMessage:
		return fmt.Sprintf("new message #%d: %s", ev.Summary.ID, ev.Summary.Subject)
	case events.Notification:
		return fmt.Sprintf("%s: %s", ev.Level, ev.Message)
	default:
		return fmt.Sprintf("event %d", e.Kind())
	}
}
