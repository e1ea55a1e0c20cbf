package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// campaigns is owned by the campaign service; the statement only guarantees
// the columns this service reads exist on a fresh database.
var postgresMigrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		master_id BIGINT NOT NULL,
		is_public BOOLEAN NOT NULL DEFAULT TRUE,
		join_token TEXT,
		password_hash TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		campaign_id BIGINT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		master_id BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Pending' CHECK (status IN ('Pending', 'Active', 'Ended')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_master ON sessions (master_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_open ON sessions (status) WHERE status <> 'Ended'`,
	`CREATE TABLE IF NOT EXISTS session_players (
		session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL,
		PRIMARY KEY (session_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_players_user ON session_players (user_id)`,
}

var sqliteMigrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		master_id INTEGER NOT NULL,
		is_public INTEGER NOT NULL DEFAULT 1,
		join_token TEXT,
		password_hash TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		campaign_id INTEGER NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		master_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'Pending' CHECK (status IN ('Pending', 'Active', 'Ended')),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		started_at INTEGER,
		ended_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_master ON sessions (master_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status)`,
	`CREATE TABLE IF NOT EXISTS session_players (
		session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL,
		PRIMARY KEY (session_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_players_user ON session_players (user_id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range postgresMigrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func RunSQLiteMigration(ctx context.Context, db *sql.DB) error {
	for _, s := range sqliteMigrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
