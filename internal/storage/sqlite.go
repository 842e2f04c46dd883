package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Webhook handlers write concurrently; a single connection serializes
	// them instead of surfacing SQLITE_BUSY to senders.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS webhook_jobs (
  id            TEXT PRIMARY KEY,
  receiver      TEXT NOT NULL,
  event_type    TEXT NOT NULL,
  payload       BLOB,
  status        TEXT NOT NULL,
  submitted_by  TEXT NOT NULL,
  dedupe_key    TEXT,
  verification  TEXT NOT NULL,
  request_id    TEXT,
  created_at    TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS webhook_jobs_receiver_created_at_idx ON webhook_jobs(receiver, created_at);`,
		`CREATE INDEX IF NOT EXISTS webhook_jobs_dedupe_key_idx ON webhook_jobs(dedupe_key, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
