package db

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
)

const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	component TEXT NOT NULL,
	version INTEGER NOT NULL,
	name TEXT NOT NULL,
	applied_at INTEGER NOT NULL,
	PRIMARY KEY (component, version)
);
`

// Migration is one forward-only schema step of a component
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrate applies the migrations of component that are newer than its recorded version.
// Each migration runs in its own transaction.
func Migrate(ctx context.Context, db *sqlx.DB, component string, migrations []Migration) error {
	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations WHERE component = ?", component,
	); err != nil {
		return fmt.Errorf("read %s schema version: %w", component, err)
	}

	pending := slices.Clone(migrations)
	slices.SortFunc(pending, func(a, b Migration) int { return a.Version - b.Version })

	for _, m := range pending {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, component, m); err != nil {
			return err
		}
		slog.Info("db migrated", "component", component, "version", m.Version, "name", m.Name)
	}
	return nil
}

func apply(ctx context.Context, db *sqlx.DB, component string, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %s/%d %s: %w", component, m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (component, version, name, applied_at) VALUES (?, ?, ?, ?)",
		component, m.Version, m.Name, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration %s/%d: %w", component, m.Version, err)
	}
	return tx.Commit()
}
