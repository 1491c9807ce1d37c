// Package main applies or rolls back the embedded schema migrations.
//
// Usage:
//
//	go run ./cmd/migrate -direction up
//	go run ./cmd/migrate -direction down
//	go run ./cmd/migrate -direction status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/formbricks/usersync/migrations"
	"github.com/formbricks/usersync/pkg/database"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	direction := flag.String("direction", "up", "up, down (latest migration only) or status")
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (default: $DATABASE_URL)")
	flag.Parse()

	if *databaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *direction, *databaseURL); err != nil {
		slog.Error("Migration failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, direction, databaseURL string) error {
	db, err := database.NewPostgresPool(ctx, databaseURL, database.WithApplicationName("usersync-migrate"))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	switch direction {
	case "up":
		return database.Migrate(ctx, db, migrations.FS())
	case "down":
		err := database.MigrateDown(ctx, db, migrations.FS())
		if errors.Is(err, database.ErrNoMigrations) {
			slog.Info("Nothing to roll back")
			return nil
		}

		return err
	case "status":
		return printStatus(ctx, db)
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}
}

func printStatus(ctx context.Context, db *pgxpool.Pool) error {
	all, err := database.LoadMigrations(migrations.FS())
	if err != nil {
		return err
	}

	applied, err := database.AppliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range all {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}

		fmt.Printf("%03d_%s\t%s\n", m.Version, m.Name, state)
	}

	return nil
}
