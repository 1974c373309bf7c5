package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migration is one forward schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

const migrationTable = "schema_migrations"

const migration001Up = `
CREATE TABLE IF NOT EXISTS profiles (
	id                      TEXT PRIMARY KEY,
	email                   TEXT NOT NULL,
	username                TEXT NOT NULL,
	avatar_url              TEXT NOT NULL DEFAULT '',
	bio                     TEXT NOT NULL DEFAULT '',
	play_style              TEXT NOT NULL DEFAULT '',
	psychological_archetype TEXT NOT NULL DEFAULT '',
	traits                  JSONB,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS game_sessions (
	id            UUID PRIMARY KEY,
	session_id    TEXT NOT NULL UNIQUE,
	player_id     TEXT NOT NULL,
	final_score   BIGINT NOT NULL CHECK (final_score >= 0),
	final_entropy DOUBLE PRECISION NOT NULL DEFAULT 0,
	won           BOOLEAN NOT NULL DEFAULT FALSE,
	phase_reached INTEGER NOT NULL DEFAULT 0 CHECK (phase_reached >= 0),
	metrics       JSONB,
	played_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_game_sessions_player ON game_sessions(player_id, played_at DESC);
CREATE INDEX IF NOT EXISTS idx_game_sessions_score ON game_sessions(final_score DESC);
CREATE INDEX IF NOT EXISTS idx_game_sessions_played_at ON game_sessions(played_at);
CREATE INDEX IF NOT EXISTS idx_game_sessions_won ON game_sessions(player_id) WHERE won;
`

// Migrations returns the schema history in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_profiles_and_game_sessions", UpSQL: migration001Up},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations.
func Migrate(ctx context.Context, c *Connection) error {
	if _, err := c.exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationTable+` (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := c.query(ctx, "SELECT version FROM "+migrationTable)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return fmt.Errorf("failed to scan applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, mig := range Migrations() {
		if done[mig.Version] {
			continue
		}
		err := c.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO "+migrationTable+" (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}
