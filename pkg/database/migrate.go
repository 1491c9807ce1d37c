package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// ErrNoMigrations is returned by MigrateDown when nothing has been applied.
var ErrNoMigrations = errors.New("no applied migrations")

// Migration is one versioned schema change loaded from NNN_name.up.sql and NNN_name.down.sql.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// LoadMigrations reads the migrations in the root of fsys, sorted by version.
// Files that do not match NNN_name.up.sql are skipped; a missing down file is an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []Migration

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, upSuffix) {
			continue
		}

		base := strings.TrimSuffix(name, upSuffix)

		versionStr, label, ok := strings.Cut(base, "_")
		if !ok {
			slog.Warn("Skipping migration with invalid filename", "filename", name)
			continue
		}

		version, err := strconv.Atoi(versionStr)
		if err != nil {
			slog.Warn("Skipping migration with invalid version", "filename", name, "error", err)
			continue
		}

		up, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		down, err := fs.ReadFile(fsys, base+downSuffix)
		if err != nil {
			return nil, fmt.Errorf("read down migration for %s: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    label,
			UpSQL:   string(up),
			DownSQL: string(down),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}

	return migrations, nil
}

// Migrate applies every migration in fsys that is not yet recorded in schema_migrations.
// Each migration runs in its own transaction together with its bookkeeping row.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}

	applied, err := AppliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("exec: %w", err)
			}

			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				m.Version, m.Name,
			)
			if err != nil {
				return fmt.Errorf("record: %w", err)
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("apply migration %d_%s: %w", m.Version, m.Name, err)
		}

		slog.Info("Applied migration", "version", m.Version, "name", m.Name)
	}

	return nil
}

// MigrateDown rolls back the most recently applied migration.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	var version int

	err = pool.QueryRow(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoMigrations
	}

	if err != nil {
		return fmt.Errorf("find latest migration: %w", err)
	}

	idx := sort.Search(len(migrations), func(i int) bool { return migrations[i].Version >= version })
	if idx == len(migrations) || migrations[idx].Version != version {
		return fmt.Errorf("migration %d is applied but has no file", version)
	}

	m := migrations[idx]

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("exec: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
			return fmt.Errorf("unrecord: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("roll back migration %d_%s: %w", m.Version, m.Name, err)
	}

	slog.Info("Rolled back migration", "version", m.Version, "name", m.Name)

	return nil
}

// AppliedVersions returns the set of versions recorded in schema_migrations, creating the table if needed.
func AppliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[int]bool, error) {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}

	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	return applied, nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	return nil
}
