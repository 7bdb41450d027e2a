package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/gophmail/internal/client/client"
	"github.com/dmitrijs2005/gophmail/internal/client/config"
	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/events"
)

// App is the interactive mail client. It owns the wired core, the terminal
// streams and the account the mail commands operate on.
type App struct {
	core    *client.Core
	reader  *bufio.Reader
	out     io.Writer
	history *events.Recorder

	mu      sync.Mutex
	account *models.Account
}

// NewApp opens the local database named in cfg and returns an App reading
// commands from stdin.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	core, err := client.New(ctx, cfg, client.Options{})
	if err != nil {
		return nil, err
	}
	return newApp(core, os.Stdin, os.Stdout), nil
}

func newApp(core *client.Core, in io.Reader, out io.Writer) *App {
	a := &App{
		core:    core,
		reader:  bufio.NewReader(in),
		out:     &lockedWriter{w: out},
		history: &events.Recorder{},
	}
	a.watchEvents()
	return a
}

// Run unlocks (or on first start initializes) the master password, starts
// the background services and blocks in the REPL until the user exits.
// The core is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.core.Close(); err != nil {
			a.core.Log.Error(ctx, "close core", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := a.core.Config.MetricsAddr; addr != "" {
		go func() {
			if err := a.core.ServeMetrics(ctx, addr); err != nil {
				a.core.Log.Error(ctx, "metrics server stopped", "addr", addr, "error", err)
			}
		}()
	}

	a.printf("Welcome to GophMail!\n")

	ok, err := a.core.Master.IsInitialized(ctx)
	if err != nil {
		return err
	}
	if ok {
		err = a.Unlock(ctx)
	} else {
		a.printf("No master password is set yet.\n")
		err = a.Init(ctx)
	}
	if err != nil {
		a.printf("Error: %v\n", err)
	}

	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) isUnlocked() bool {
	s, ok := a.core.Master.CurrentSecret()
	s.Wipe()
	return ok
}

func (a *App) status() string {
	if !a.isUnlocked() {
		return "locked"
	}
	if acc := a.currentAccount(); acc != nil {
		return acc.Email
	}
	return "no account"
}

func (a *App) currentAccount() *models.Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account
}

func (a *App) setAccount(acc *models.Account) {
	a.mu.Lock()
	a.account = acc
	a.mu.Unlock()
}

// requireAccount returns the account mail commands act on.
func (a *App) requireAccount() (*models.Account, error) {
	acc := a.currentAccount()
	if acc == nil {
		return nil, fmt.Errorf("no account selected, run addaccount or use <id>")
	}
	return acc, nil
}

// startBackground runs once the master password is available.
func (a *App) startBackground(ctx context.Context) {
	if acc := a.currentAccount(); acc == nil {
		accs, err := a.core.Accounts.ListAccounts(ctx)
		if err == nil && len(accs) > 0 {
			a.setAccount(accs[0])
		}
	}
	if s := a.core.Scheduler; s != nil && !s.Running() {
		if err := s.Start(ctx); err != nil {
			a.core.Log.Error(ctx, "start auto-sync", "error", err)
		}
	}
}

func (a *App) stopBackground() {
	if s := a.core.Scheduler; s != nil {
		s.Stop()
	}
}

// watchEvents prints notifications and new mail as they are published and
// keeps every event for the history command.
func (a *App) watchEvents() {
	bus := a.core.Events
	bus.SubscribeAll(a.history.Publish)

	events.Subscribe(bus, func(n events.Notification) {
		if n.Err != nil {
			a.printf("[%s] %s: %v\n", n.Level, n.Message, n.Err)
			return
		}
		a.printf("[%s] %s\n", n.Level, n.Message)
	})
	events.Subscribe(bus, func(m events.NewMessage) {
		if m.Summary.IsSeen {
			return
		}
		a.printf("New message #%d from %s: %s\n", m.Summary.ID, m.Summary.Sender, m.Summary.Subject)
	})
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// lockedWriter serializes writes from the REPL and from event handlers
// running on background goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
