package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if _, err = db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		monitor TEXT NOT NULL,
		category TEXT NOT NULL,
		group_key TEXT NOT NULL,
		level TEXT,
		-- payload and context are stored as JSON text
		payload_json TEXT,
		context_json TEXT,
		created_at_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at_ns DESC);
	CREATE INDEX IF NOT EXISTS idx_events_monitor ON events (monitor, created_at_ns DESC);

	CREATE TABLE IF NOT EXISTS operators (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at_ns INTEGER NOT NULL
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
