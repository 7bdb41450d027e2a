// Package server wires and runs the key server: storage, key service and
// the HTTP API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/server/config"
	"github.com/dmitrijs2005/gophmail/internal/server/httpapi"
	"github.com/dmitrijs2005/gophmail/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmail/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

// NewApp opens the database (keys live in memory when DatabaseDSN is empty),
// applies migrations and builds the HTTP server.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.LogLevel)})
	logger := logging.NewSlogLogger(slog.New(h))

	var (
		db   *sql.DB
		rm   repomanager.RepositoryManager
		ping func(context.Context) error
	)
	if cfg.DatabaseDSN == "" {
		logger.Warn(ctx, "no database configured, keys are kept in memory")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping error: %w", err)
		}
		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
		ping = db.PingContext
	}

	var mailer services.Mailer
	if cfg.VerifyKeys {
		mailer = services.NewSMTPMailer(cfg)
	}
	keys := services.NewKeyService(db, rm, mailer, logger, cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := httpapi.NewHandler(keys, ping, reg, logger)
	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		server: httpapi.NewServer(cfg.EndpointAddr, handler, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting key server...", "addr", app.config.EndpointAddr, "verify_keys", app.config.VerifyKeys)
	app.initSignalHandler(cancelFunc)

	err := app.server.Run(ctx)
	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(ctx, "db close error", "err", cerr)
		}
	}
	return err
}
