package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/formbricks/usersync/internal/config"
	"github.com/formbricks/usersync/internal/observability"
	"github.com/formbricks/usersync/migrations"
	"github.com/formbricks/usersync/pkg/database"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogging(cfg.LogLevel)

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
		database.WithMaxConns(cfg.DatabaseMaxConns),
		database.WithApplicationName(serviceName),
	)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return 1
	}
	defer db.Close()

	if cfg.MigrateOnStartup {
		if err := database.Migrate(ctx, db, migrations.FS()); err != nil {
			slog.Error("Failed to apply migrations", "error", err)
			return 1
		}
	}

	app, err := NewApp(ctx, cfg, db)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}

	exitCode := 0

	if err := app.Run(ctx); err != nil {
		slog.Error("Server failed", "error", err)

		exitCode = 1
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
		return 1
	}

	slog.Info("Server stopped")

	return exitCode
}

// setupLogging installs the default slog logger: a text handler at the given level, wrapped
// so records carry request and trace context.
func setupLogging(level string) {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	slog.SetDefault(slog.New(newLogHandler(os.Stdout, opts)))
}

// newLogHandler wraps a text handler so request_id (and trace_id/span_id when tracing is on)
// appear in every record.
func newLogHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return observability.NewTraceContextHandler(slog.NewTextHandler(w, opts))
}
