package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophmail/internal/flagx"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool

	Init(ctx context.Context) error
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	ChangePassword(ctx context.Context) error

	AddAccount(ctx context.Context, args []string) error
	Accounts(ctx context.Context) error
	Use(ctx context.Context, args []string) error
	TestAccount(ctx context.Context) error
	SetAccountPassword(ctx context.Context) error
	RemoveAccount(ctx context.Context, args []string) error

	KeyGen(ctx context.Context) error
	ImportKey(ctx context.Context, args []string) error
	PublishKey(ctx context.Context) error
	Keys(ctx context.Context) error

	Folders(ctx context.Context) error
	Sync(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	SaveAttachment(ctx context.Context, args []string) error
	History(ctx context.Context) error
}

const (
	helpLocked   = "Available commands: init, unlock, exit"
	helpUnlocked = "Available commands: lock, passwd, addaccount, accounts, use, test, setpass, rmaccount, " +
		"keygen, importkey, publish, keys, folders, sync, (l)ist, show, send, delete, save, history, exit"
)

// runREPL starts a simple read–eval–print loop for the mail client.
//
// It reads a line from reader, splits it shell-style, and dispatches the
// first word to a method on 'a' with the remaining words as arguments.
// The loop exits on EOF or when the user types "exit" or "quit".
//
// While the master password is locked only init, unlock, help and exit are
// accepted. Errors returned by command handlers are printed and the loop
// continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gm> %s > ", statusFn()))
		line, readErr := reader.ReadString('\n')
		if readErr != nil && (!errors.Is(readErr, io.EOF) || line == "") {
			return
		}
		parts, perr := flagx.SplitCommandLine(line)
		if perr != nil {
			printlnFn("Error:", perr)
			continue
		}
		if len(parts) == 0 {
			if readErr != nil {
				return
			}
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}
		if err := dispatch(ctx, a, cmd, args); err != nil {
			printlnFn("Error:", err)
		}
		if readErr != nil {
			return
		}
	}
}

var errNeedUnlock = errors.New("master password is locked, run unlock first")

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isUnlocked() {
			printlnFn(helpUnlocked)
		} else {
			printlnFn(helpLocked)
		}
		return nil
	case "init":
		return a.Init(ctx)
	case "unlock":
		return a.Unlock(ctx)
	}

	if !a.isUnlocked() {
		if _, known := unlockedCommands[cmd]; known {
			return errNeedUnlock
		}
		printlnFn("Unknown command:", cmd)
		return nil
	}

	switch cmd {
	case "lock":
		return a.Lock(ctx)
	case "passwd":
		return a.ChangePassword(ctx)
	case "addaccount":
		return a.AddAccount(ctx, args)
	case "accounts":
		return a.Accounts(ctx)
	case "use":
		return a.Use(ctx, args)
	case "test":
		return a.TestAccount(ctx)
	case "setpass":
		return a.SetAccountPassword(ctx)
	case "rmaccount":
		return a.RemoveAccount(ctx, args)
	case "keygen":
		return a.KeyGen(ctx)
	case "importkey":
		return a.ImportKey(ctx, args)
	case "publish":
		return a.PublishKey(ctx)
	case "keys":
		return a.Keys(ctx)
	case "folders":
		return a.Folders(ctx)
	case "sync":
		return a.Sync(ctx, args)
	case "l", "list":
		return a.List(ctx, args)
	case "show":
		return a.Show(ctx, args)
	case "send":
		return a.Send(ctx, args)
	case "delete":
		return a.Delete(ctx, args)
	case "save":
		return a.SaveAttachment(ctx, args)
	case "history":
		return a.History(ctx)
	default:
		printlnFn("Unknown command:", cmd)
		return nil
	}
}

var unlockedCommands = map[string]struct{}{
	"lock": {}, "passwd": {}, "addaccount": {}, "accounts": {}, "use": {}, "test": {}, "setpass": {}, "rmaccount": {},
	"keygen": {}, "importkey": {}, "publish": {}, "keys": {}, "folders": {}, "sync": {},
	"l": {}, "list": {}, "show": {}, "send": {}, "delete": {}, "save": {}, "history": {},
}
