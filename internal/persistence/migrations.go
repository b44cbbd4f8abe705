package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// migrations are applied in order on startup. Statements are idempotent so a
// restart never fails on an already-migrated schema.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        username TEXT NOT NULL DEFAULT '',
        first_name TEXT NOT NULL DEFAULT '',
        last_name TEXT NOT NULL DEFAULT '',
        last_activity TIMESTAMPTZ NOT NULL,
        reports_sent INTEGER NOT NULL DEFAULT 0
    )`,
	`CREATE TABLE IF NOT EXISTS tickets (
        id BIGINT PRIMARY KEY,
        owner_id TEXT NOT NULL,
        body TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        status TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_owner_created ON tickets (owner_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS counters (
        name TEXT PRIMARY KEY,
        value BIGINT NOT NULL
    )`,
	`INSERT INTO counters (name, value) VALUES ('ticket_id', 0)
        ON CONFLICT (name) DO NOTHING`,
	`INSERT INTO counters (name, value) VALUES ('total_reports', 0)
        ON CONFLICT (name) DO NOTHING`,
	`INSERT INTO counters (name, value) VALUES ('resolved_reports', 0)
        ON CONFLICT (name) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS bans (
        user_id TEXT PRIMARY KEY,
        banned_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS settings (
        name TEXT PRIMARY KEY,
        value BOOLEAN NOT NULL
    )`,
	`INSERT INTO settings (name, value) VALUES ('auto_respond', TRUE)
        ON CONFLICT (name) DO NOTHING`,
	`INSERT INTO settings (name, value) VALUES ('notify_new_users', TRUE)
        ON CONFLICT (name) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS sessions (
        user_id TEXT PRIMARY KEY,
        mode TEXT NOT NULL,
        reply_ticket_id BIGINT NOT NULL DEFAULT 0
    )`,
}

// RunMigrations applies the embedded schema statements.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(migrations)))
	return nil
}
