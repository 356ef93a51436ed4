package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Run(ctx context.Context, pool *pgxpool.Pool) error {
	conn := pool

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS teams (
		 name TEXT PRIMARY KEY,
		 created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS users (
		 id TEXT PRIMARY KEY,
		 username TEXT NOT NULL,
		 team_name TEXT NOT NULL REFERENCES teams(name) ON DELETE RESTRICT,
		 is_active BOOLEAN NOT NULL DEFAULT true,
		 created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS pull_requests (
		 id TEXT PRIMARY KEY,
		 name TEXT NOT NULL,
		 author_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		 status TEXT NOT NULL DEFAULT 'OPEN',
		 reviewers TEXT[] NOT NULL DEFAULT '{}',
		 created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		 merged_at TIMESTAMP WITH TIME ZONE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_team_name ON users(team_name)`,
		`CREATE INDEX IF NOT EXISTS idx_pull_requests_status ON pull_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_pull_requests_reviewers ON pull_requests USING GIN (reviewers)`,
	}

	for i, s := range stmts {
		if _, err := conn.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrations stmt %d failed: %w", i, err)
		}
	}
	return nil
}
