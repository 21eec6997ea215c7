// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/catalogservice"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/seed"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

// components holds everything the three run modes share.
type components struct {
	db       *catalog.DB
	svc      *catalogservice.Service
	files    storage.Provider
	importer *seed.Importer
}

func (c *components) close() {
	c.db.Close()
}

// build opens the catalog and, when seeding is enabled, the definitions
// directory. notify may be nil.
func build(cfg *Config, notify catalogservice.Notifier, logger *slog.Logger) (*components, error) {
	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	c := &components{db: db, svc: catalogservice.NewService(db, notify)}

	if !cfg.Seed.Enabled() {
		return c, nil
	}
	if err := os.MkdirAll(cfg.Seed.Path, 0o755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create seed dir: %w", err)
	}
	files, err := storage.NewFS(cfg.Seed.Path)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	c.files = files
	c.importer = seed.NewImporter(db, c.svc, files, cfg.Seed.Creator, logger)
	return c, nil
}

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *application) prepare() (*Config, *slog.LevelVar, error) {
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	level := new(slog.LevelVar)
	level.Set(a.config.App.LogLevel)
	return a.config, level, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	cfg, level, err := app.prepare()
	if err != nil {
		return err
	}

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, level)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("seed_path", cfg.Seed.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	c, err := build(cfg, broker, logger)
	if err != nil {
		return err
	}
	defer c.close()

	// Run initial seed import.
	if c.importer != nil {
		res, err := c.importer.Sync(ctx)
		if err != nil {
			logger.Warn("initial seed import failed", slog.String("error", err.Error()))
		} else {
			logger.Info("Seed definitions imported",
				slog.Int("created", res.Created),
				slog.Int("updated", res.Updated),
				slog.Int("unchanged", res.Unchanged),
				slog.Int("failed", res.Failed))
		}
	}

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, cfg.Auth.IdentityHeader, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch seed definitions.
	if c.importer != nil && cfg.Seed.Watch {
		g.Go(func() error {
			if err := seed.Watch(gCtx, c.importer, logger); err != nil {
				logger.Warn("seed watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Hot-reload the log level when the config file changes.
	if app.configPath != "" {
		g.Go(func() error {
			err := pkgconfig.Watch(gCtx, app.configPath, NewDefaultConfig,
				func(next *Config) {
					if next.App.LogLevel != level.Level() {
						level.Set(next.App.LogLevel)
						logger.Info("Log level changed", slog.String("log_level", next.App.LogLevel.String()))
					}
				},
				func(err error) {
					logger.Warn("config reload failed", slog.String("error", err.Error()))
				})
			if err != nil {
				logger.Warn("config watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watchers stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the catalog over MCP on stdin/stdout. Logs go to stderr
// since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	cfg, level, err := app.prepare()
	if err != nil {
		return err
	}
	if !cfg.Seed.Enabled() {
		return fmt.Errorf("mcp: seed.path is required")
	}

	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)

	c, err := build(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer c.close()

	srv := mcpserver.New(c.svc, c.files, c.importer)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// RunImport imports the seed definitions once and reports the outcome.
// It fails when any file could not be imported.
func RunImport(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	cfg, level, err := app.prepare()
	if err != nil {
		return err
	}
	if !cfg.Seed.Enabled() {
		return fmt.Errorf("import: seed.path is required")
	}

	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)

	c, err := build(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer c.close()

	res, err := c.importer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	logger.Info("Seed definitions imported",
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("failed", res.Failed))
	if res.Failed > 0 {
		return fmt.Errorf("import: %d definition file(s) failed", res.Failed)
	}
	return nil
}
