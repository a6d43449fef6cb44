// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS modules (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL,
		icon         TEXT NOT NULL DEFAULT '',
		color        TEXT NOT NULL DEFAULT '',
		difficulty   TEXT NOT NULL,
		categories   TEXT[] NOT NULL DEFAULT '{}',
		author       TEXT NOT NULL,
		rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
		review_count INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS module_terms (
		module_id        TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
		position         INTEGER NOT NULL,
		id               TEXT NOT NULL,
		word             TEXT NOT NULL,
		hint             TEXT NOT NULL,
		full_explanation TEXT NOT NULL DEFAULT '',
		fun_fact         TEXT NOT NULL DEFAULT '',
		difficulty       TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL DEFAULT '',
		tags             TEXT[] NOT NULL DEFAULT '{}',
		image_url        TEXT NOT NULL DEFAULT '',
		related_terms    TEXT[] NOT NULL DEFAULT '{}',
		PRIMARY KEY (module_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS room_results (
		room_code   TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		module_id   TEXT NOT NULL,
		module_name TEXT NOT NULL,
		term_count  INTEGER NOT NULL,
		report      JSONB NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (room_code, started_at)
	)`,
	`CREATE TABLE IF NOT EXISTS room_result_players (
		room_code   TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		player_id   TEXT NOT NULL,
		player_name TEXT NOT NULL,
		rank        INTEGER NOT NULL,
		score       INTEGER NOT NULL,
		won         INTEGER NOT NULL,
		lost        INTEGER NOT NULL,
		PRIMARY KEY (room_code, started_at, player_id),
		FOREIGN KEY (room_code, started_at) REFERENCES room_results(room_code, started_at) ON DELETE CASCADE
	)`,
}

// EnsureSchema creates the tables this service owns.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}
