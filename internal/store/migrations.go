package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// migrations is the ordered list of SQLite schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create conversations table",
		Up: `
			CREATE TABLE IF NOT EXISTS conversations (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				university_id INTEGER NOT NULL DEFAULT 0,
				current_step TEXT NOT NULL DEFAULT 'initialize',
				state_json TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
			CREATE INDEX IF NOT EXISTS idx_conversations_step ON conversations(current_step);
			CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_conversations_updated;
			DROP INDEX IF EXISTS idx_conversations_step;
			DROP INDEX IF EXISTS idx_conversations_user;
			DROP TABLE IF EXISTS conversations;
		`,
	},
	{
		Version:     2,
		Description: "Create conversation_events table",
		Up: `
			CREATE TABLE IF NOT EXISTS conversation_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				event_type TEXT NOT NULL,
				payload TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_conversation_events_conversation ON conversation_events(conversation_id);
			CREATE INDEX IF NOT EXISTS idx_conversation_events_type ON conversation_events(event_type);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_conversation_events_type;
			DROP INDEX IF EXISTS idx_conversation_events_conversation;
			DROP TABLE IF EXISTS conversation_events;
		`,
	},
	{
		Version:     3,
		Description: "Index conversations by creation time",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_conversations_created;
		`,
	},
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

// runMigrations applies all pending migrations to the database.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	currentVersion, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// rollbackMigrations reverts applied migrations newer than version, newest first.
func rollbackMigrations(ctx context.Context, db *sql.DB, version int) error {
	currentVersion, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if m.Version <= version || m.Version > currentVersion {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction for rollback %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			tx.Rollback()
			return fmt.Errorf("revert migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("unrecord migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit rollback %d: %w", m.Version, err)
		}
	}

	return nil
}

// CurrentVersion returns the current schema version.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}

// LatestVersion returns the latest available migration version.
func LatestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
