package durablestore

import "context"

// ddlStatements creates the durable schema if it does not already exist.
// Kept as plain idempotent DDL rather than a migration framework: the bid
// pipeline owns four tables with no evolving shape, so a startup-time
// EnsureSchema is simpler than a versioned migration runner.
var ddlStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		weight        DOUBLE PRECISION NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		product_id    TEXT NOT NULL,
		reserve_price DOUBLE PRECISION NOT NULL,
		final_price   DOUBLE PRECISION,
		inventory     INTEGER NOT NULL,
		alpha         DOUBLE PRECISION NOT NULL,
		beta          DOUBLE PRECISION NOT NULL,
		gamma         DOUBLE PRECISION NOT NULL,
		start_time    TIMESTAMPTZ NOT NULL,
		end_time      TIMESTAMPTZ NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		session_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		price      DOUBLE PRECISION NOT NULL,
		score      DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (session_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rankings (
		session_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		rank       INTEGER NOT NULL,
		price      DOUBLE PRECISION NOT NULL,
		score      DOUBLE PRECISION NOT NULL,
		is_winner  BOOLEAN NOT NULL,
		PRIMARY KEY (session_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_active_end ON sessions (is_active, end_time)`,
}

// EnsureSchema applies the DDL above. Safe to call on every process start.
func EnsureSchema(ctx context.Context, p *Pool) error {
	for _, stmt := range ddlStatements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
