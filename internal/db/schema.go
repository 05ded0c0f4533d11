package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the engine's DDL. Applied idempotently at startup and by the
// test harness. Users are provisioned on first sign-in via the sync
// endpoint; challenge templates come from the admin CRUD and are only
// read here.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		clerk_id TEXT UNIQUE NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS challenge_templates (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		daily_target_count INT NOT NULL,
		total_days INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS user_challenge_progress (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		challenge_id UUID NOT NULL REFERENCES challenge_templates(id) ON DELETE CASCADE,
		current_day INT NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'active',
		current_streak INT NOT NULL DEFAULT 0,
		longest_streak INT NOT NULL DEFAULT 0,
		total_completed_days INT NOT NULL DEFAULT 0,
		missed_days INT NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_completed_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		paused_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Backstop for the service-level pre-check in Start: at most one
	// in-flight (active or paused) progress per user and challenge.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_progress_one_in_flight
		ON user_challenge_progress (user_id, challenge_id)
		WHERE status IN ('active', 'paused')`,

	`CREATE INDEX IF NOT EXISTS idx_progress_user_status
		ON user_challenge_progress (user_id, status)`,

	`CREATE TABLE IF NOT EXISTS daily_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		progress_id UUID NOT NULL REFERENCES user_challenge_progress(id) ON DELETE CASCADE,
		day_number INT NOT NULL,
		completion_date DATE NOT NULL,
		count_completed INT NOT NULL DEFAULT 0,
		target_count INT NOT NULL,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TIMESTAMPTZ,
		mood TEXT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (progress_id, day_number)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_daily_logs_date
		ON daily_logs (completion_date) WHERE is_completed`,

	`CREATE TABLE IF NOT EXISTS missed_challenge_records (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		challenge_id UUID NOT NULL REFERENCES challenge_templates(id) ON DELETE CASCADE,
		missed_date DATE NOT NULL,
		reason TEXT NOT NULL DEFAULT 'not_completed',
		was_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, challenge_id, missed_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_missed_user_date
		ON missed_challenge_records (user_id, missed_date)`,

	`CREATE TABLE IF NOT EXISTS user_devices (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT UNIQUE NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
