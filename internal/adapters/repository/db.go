package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// OpenDB opens (creating if needed) the library database at path,
// switches it to WAL mode and applies pending migrations.
func OpenDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(path, 0600)
	return db, nil
}

// migrate applies schema migrations based on user_version
func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS categories (
		  id          TEXT PRIMARY KEY,
		  user_id     TEXT NOT NULL,
		  name        TEXT NOT NULL,
		  name_norm   TEXT NOT NULL,
		  description TEXT NOT NULL DEFAULT '',
		  color       TEXT NOT NULL DEFAULT 'default',
		  created_at  INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_user_name
		ON categories(user_id, name_norm);

		CREATE TABLE IF NOT EXISTS preferences (
		  user_id             TEXT PRIMARY KEY,
		  default_category_id TEXT
		);

		CREATE TABLE IF NOT EXISTS containers (
		  id          TEXT PRIMARY KEY,
		  user_id     TEXT NOT NULL,
		  category_id TEXT NOT NULL REFERENCES categories(id),
		  title       TEXT NOT NULL,
		  url         TEXT NOT NULL DEFAULT '',
		  platform    TEXT NOT NULL DEFAULT 'unknown',
		  note        TEXT NOT NULL DEFAULT '',
		  tags_json   TEXT,
		  created_at  INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_containers_user_url
		ON containers(user_id, url)
		WHERE url <> '';

		CREATE INDEX IF NOT EXISTS idx_containers_user_created
		ON containers(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS images (
		  id            TEXT PRIMARY KEY,
		  container_id  TEXT NOT NULL REFERENCES containers(id) ON DELETE CASCADE,
		  blob_key      TEXT NOT NULL,
		  original_name TEXT NOT NULL,
		  mime_type     TEXT NOT NULL,
		  size_bytes    INTEGER NOT NULL,
		  hash          TEXT NOT NULL,
		  urls_json     TEXT NOT NULL,
		  created_at    INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_images_container
		ON images(container_id);

		CREATE TABLE IF NOT EXISTS attempts (
		  share_id   TEXT PRIMARY KEY,
		  attempt_id TEXT NOT NULL,
		  state      TEXT NOT NULL,
		  reason     TEXT NOT NULL DEFAULT '',
		  updated_at INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string)
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// SchemaVersion reports the applied schema version
func SchemaVersion(db *sql.DB) (int, error) {
	return userVersion(db)
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
