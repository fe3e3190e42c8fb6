package helpers

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = `
CREATE TABLE IF NOT EXISTS accounts (
	uid TEXT PRIMARY KEY,
	screen_name TEXT NOT NULL,
	access_token TEXT NOT NULL,
	access_token_secret TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS actions (
	id UUID PRIMARY KEY,
	source_uid TEXT NOT NULL,
	sink_uid TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS actions_pending_idx ON actions (source_uid, status, kind, updated_at);

CREATE TABLE IF NOT EXISTS unblocks (
	account_uid TEXT NOT NULL,
	sink_uid TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (account_uid, sink_uid)
);

CREATE TABLE IF NOT EXISTS device_tokens (
	account_uid TEXT NOT NULL,
	token TEXT NOT NULL,
	platform TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (account_uid, token)
);
`

// SetupTestDB creates a test database connection and makes sure the schema
// exists. Skips the test when no database is configured.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return pool
}

// SeedAccount inserts a source account with an optional suppression set.
func SeedAccount(t *testing.T, pool *pgxpool.Pool, uid, screenName string, suppressed ...string) {
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO accounts (uid, screen_name, access_token, access_token_secret)
		VALUES ($1, $2, 'test-token', 'test-secret')
		ON CONFLICT (uid) DO NOTHING
	`, uid, screenName)
	if err != nil {
		t.Fatalf("Failed to seed account %s: %v", uid, err)
	}

	for _, sinkUID := range suppressed {
		_, err := pool.Exec(ctx, `
			INSERT INTO unblocks (account_uid, sink_uid) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, uid, sinkUID)
		if err != nil {
			t.Fatalf("Failed to seed suppression %s -> %s: %v", uid, sinkUID, err)
		}
	}
}

// CleanupTestDB removes rows created by the integration tests.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	for _, query := range []string{
		"DELETE FROM actions WHERE source_uid LIKE 'itest_%'",
		"DELETE FROM unblocks WHERE account_uid LIKE 'itest_%'",
		"DELETE FROM device_tokens WHERE account_uid LIKE 'itest_%'",
		"DELETE FROM accounts WHERE uid LIKE 'itest_%'",
	} {
		if _, err := pool.Exec(ctx, query); err != nil {
			t.Logf("Warning: failed to cleanup test data: %v", err)
		}
	}
	pool.Close()
}
