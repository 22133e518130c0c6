// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/vitalplan/internal/api"
	"github.com/starford/vitalplan/internal/llm"
	"github.com/starford/vitalplan/internal/mcpserver"
	"github.com/starford/vitalplan/internal/models"
	"github.com/starford/vitalplan/internal/planservice"
	"github.com/starford/vitalplan/internal/planstore"
	"github.com/starford/vitalplan/internal/reload"
	"github.com/starford/vitalplan/internal/sse"
	"github.com/starford/vitalplan/internal/storage"
	pkgconfig "github.com/starford/vitalplan/pkg/config"
)

// components are the long-lived parts shared by every run mode.
type components struct {
	logger *slog.Logger
	level  *slog.LevelVar
	db     *planstore.DB
	gen    llm.TextGenerator
	svc    *planservice.Service
}

func (c *components) close() {
	if err := llm.Close(c.gen); err != nil {
		c.logger.Warn("generator close failed", slog.String("error", err.Error()))
	}
	if err := c.db.Close(); err != nil {
		c.logger.Warn("database close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build wires logger, plan store, archive, generator, and plan service.
// Logs go to logOut; events may be nil.
func (app *application) build(ctx context.Context, logOut io.Writer, events planservice.Publisher) (*components, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("generator", cfg.Generator.Provider),
		slog.String("archive_path", cfg.Archive.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	archive, err := storage.NewFS(cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}

	db, err := planstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init plan store: %w", err)
	}

	gen := app.generator
	if gen == nil {
		gen, err = llm.New(ctx, cfg.Generator.LLM())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init generator: %w", err)
		}
	}

	return &components{
		logger: logger,
		level:  level,
		db:     db,
		gen:    gen,
		svc:    planservice.NewService(gen, db, archive, events, cfg.ServiceOptions()),
	}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()

	c, err := app.build(ctx, os.Stdout, broker)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	apiRouter := api.NewRouter(c.svc, cfg.Auth.API(), broker)

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
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
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

	// Watch the config file and apply log level changes.
	if cfg.App.WatchConfig && app.configPath != "" {
		g.Go(func() error {
			err := reload.Watch(gCtx, app.configPath, 0, logger, func() {
				app.reloadLogLevel(c)
			})
			if err != nil {
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
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

		// Close SSE streams first so Shutdown does not wait on them.
		broker.Close()

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

// errShutdown cancels the errgroup context once shutdown has begun so the
// config watcher stops too.
var errShutdown = errors.New("shutdown")

// reloadLogLevel re-reads the config file and applies its log level. Other
// settings need a restart.
func (app *application) reloadLogLevel(c *components) {
	next := NewDefaultConfig()
	if err := pkgconfig.Load(app.configPath, next); err != nil {
		c.logger.Warn("config reload failed", slog.String("error", err.Error()))
		return
	}
	if next.App.LogLevel == c.level.Level() {
		return
	}
	c.level.Set(next.App.LogLevel)
	c.logger.Info("log level changed", slog.String("log_level", next.App.LogLevel.String()))
}

// RunMCP serves the plan tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build(ctx, os.Stderr, nil)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// Generate runs one generation for ownerID and writes the resulting plan
// view as JSON to out.
func Generate(ctx context.Context, out io.Writer, ownerID int64, domain, preferences string, opts ...Option) error {
	d, err := models.ParseDomain(domain)
	if err != nil {
		return err
	}
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build(ctx, os.Stderr, nil)
	if err != nil {
		return err
	}
	defer c.close()

	view, err := c.svc.GeneratePlan(ctx, ownerID, d, preferences)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
