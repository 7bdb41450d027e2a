// Package scheduler runs account synchronisation periodically in the
// background.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/services"
	"github.com/dmitrijs2005/gophmail/internal/logging"
)

// MinInterval is the smallest period cron's @every schedule supports.
const MinInterval = time.Second

type AccountLister interface {
	ListAccounts(ctx context.Context) ([]*models.Account, error)
}

type AccountSyncer interface {
	SyncAccount(ctx context.Context, accountID int64) (services.SyncResult, error)
}

// Scheduler syncs every known account on a fixed period. A tick that starts
// while the previous one is still running is skipped.
type Scheduler struct {
	interval time.Duration
	accounts AccountLister
	syncer   AccountSyncer
	notify   services.NotificationService
	log      logging.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func New(interval time.Duration, accounts AccountLister, syncer AccountSyncer,
	notify services.NotificationService, log logging.Logger) *Scheduler {
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Scheduler{
		interval: interval,
		accounts: accounts,
		syncer:   syncer,
		notify:   notify,
		log:      log,
	}
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start schedules the periodic run. ctx is handed to every run; cancelling
// it does not stop the schedule, use Stop for that.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	logger := cronLogger{ctx: ctx, log: s.log}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	runCtx := context.WithoutCancel(ctx)
	if _, err := c.AddFunc("@every "+s.interval.String(), func() { s.RunOnce(runCtx) }); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}

	s.cron = c
	c.Start()

	s.log.Info(ctx, "auto-sync started", "interval", s.interval)
	s.notify.Info(ctx, "Auto-sync started")
	return nil
}

// Stop prevents future runs and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.notify.Info(context.Background(), "Auto-sync stopped")
}

// Running reports whether Start was called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// RunOnce syncs every account sequentially. A failing account is reported
// and does not affect the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	accs, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		s.notify.Error(ctx, "Auto-sync fatal error", err)
		return
	}

	for _, a := range accs {
		if _, err := s.syncer.SyncAccount(ctx, a.ID); err != nil {
			s.notify.Error(ctx, fmt.Sprintf("Auto-sync account failed: %d", a.ID), err)
		}
	}
}

// cronLogger routes cron's own diagnostics to the application logger.
type cronLogger struct {
	ctx context.Context
	log logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(l.ctx, "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(l.ctx, "cron: "+msg, append(keysAndValues, "err", err)...)
}
