package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/gophmail/internal/client/attachments"
	"github.com/dmitrijs2005/gophmail/internal/client/config"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories"
	"github.com/dmitrijs2005/gophmail/internal/client/scheduler"
	"github.com/dmitrijs2005/gophmail/internal/client/services"
	"github.com/dmitrijs2005/gophmail/internal/client/storage"
	"github.com/dmitrijs2005/gophmail/internal/events"
	"github.com/dmitrijs2005/gophmail/internal/keydirectory"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/metrics"
	"github.com/dmitrijs2005/gophmail/internal/transport"
	"github.com/dmitrijs2005/gophmail/internal/workerpool"
)

// Options overrides collaborators New would otherwise build from the
// configuration. Zero fields select the defaults.
type Options struct {
	Transports transport.Factory
	Blobs      attachments.Store
	Directory  keydirectory.Directory
	Log        logging.Logger
	Registry   *prometheus.Registry
}

// Core is the fully wired mail core of one local database.
type Core struct {
	Config   *config.Config
	Store    *repositories.Store
	Events   *events.Bus
	Log      logging.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Pool     *workerpool.Pool

	Blobs     attachments.Store
	Directory keydirectory.Directory

	Notifications services.NotificationService
	Master        services.MasterPasswordService
	Vault         services.KeyVaultService
	Accounts      services.AccountService
	Folders       services.FolderService
	Crypto        services.MessageCryptoService
	Mail          services.MailService
	Sync          services.SyncService

	// Scheduler is nil when the sync interval is zero.
	Scheduler *scheduler.Scheduler
}

// New opens (and migrates) the database named in cfg and wires every
// service on top of it.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Core, error) {
	log := opts.Log
	if log == nil {
		log = logging.NewTextLogger(os.Stderr, cfg.LogLevel)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o770); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := storage.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := repositories.NewStore(db)

	blobs := opts.Blobs
	if blobs == nil {
		blobs, err = attachments.Open(ctx, cfg.AttachmentStore, cfg.AttachmentDir, attachments.S3Config{
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
			Bucket:   cfg.S3Bucket,
			User:     cfg.S3User,
			Password: cfg.S3Password,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open attachment store: %w", err)
		}
	}

	transports := opts.Transports
	if transports == nil {
		transports = transport.NewFactory(nil)
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	c := &Core{
		Config:   cfg,
		Store:    store,
		Events:   events.NewBus(),
		Log:      log,
		Registry: reg,
		Metrics:  metrics.New(reg),
		Pool:     workerpool.New(cfg.WorkerPoolSize),
		Blobs:    blobs,
	}

	c.Directory = opts.Directory
	if c.Directory == nil {
		c.Directory = newDirectory(cfg, store.Repos(), log)
	}

	repos := store.Repos()
	c.Notifications = services.NewNotificationService(log, c.Events)
	c.Master = services.NewMasterPasswordService(store, cfg.KDFIterations, c.Events, log)
	c.Vault = services.NewKeyVaultService(repos, c.Directory, cfg.KDFIterations, c.Events, log)
	c.Accounts = services.NewAccountService(repos, c.Master, transports, blobs, cfg.KDFIterations, log)
	c.Folders = services.NewFolderService(repos, log)
	c.Crypto = services.NewMessageCryptoService(repos, c.Directory, c.Master, c.Vault, c.Notifications, c.Metrics, log)
	c.Mail = services.NewMailService(services.MailDeps{
		Store:         store,
		Accounts:      c.Accounts,
		Folders:       c.Folders,
		Crypto:        c.Crypto,
		Transports:    transports,
		Blobs:         blobs,
		Pool:          c.Pool,
		Notifications: c.Notifications,
		Events:        c.Events,
		Metrics:       c.Metrics,
		Log:           log,
	})
	c.Sync = services.NewSyncService(services.SyncDeps{
		Store:         store,
		Accounts:      c.Accounts,
		Folders:       c.Folders,
		Transports:    transports,
		Blobs:         blobs,
		Pool:          c.Pool,
		Notifications: c.Notifications,
		Events:        c.Events,
		Metrics:       c.Metrics,
		Log:           log,
		FetchLimit:    cfg.FetchLimit,
	})
	if cfg.SyncInterval > 0 {
		c.Scheduler = scheduler.New(cfg.SyncInterval, c.Accounts, c.Sync, c.Notifications, log)
	}

	return c, nil
}

// newDirectory prefers the key server and falls back to keys pinned in
// the local database.
func newDirectory(cfg *config.Config, repos *repositories.Repositories, log logging.Logger) keydirectory.Directory {
	local := keydirectory.NewLocal(repos.Keys)
	if cfg.KeyServerURL == "" {
		return local
	}
	return &keydirectory.Fallback{
		Remote: keydirectory.NewHTTPDirectory(cfg.KeyServerURL, cfg.KeyServerTimeout),
		Local:  local,
		Log:    log,
	}
}

// MetricsHandler serves the core's registry in the prometheus text format.
func (c *Core) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// ServeMetrics listens on addr until ctx is done.
func (c *Core) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the scheduler, waits for pooled work, wipes the unlocked
// master secret and closes the database.
func (c *Core) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	c.Pool.Close()
	c.Master.Lock()
	return c.Store.Close()
}
