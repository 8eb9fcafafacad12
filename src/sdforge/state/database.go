// Package state records build runs in a local SQLite database so the
// history command can show what was built, on which device, and how each
// stage went.
package state

import (
	"database/sql"
	"fmt"

	"github.com/sdforge/sdforge/src/common/logs"
	"github.com/sdforge/sdforge/src/common/paths"

	_ "github.com/mattn/go-sqlite3"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the state package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Database wraps the SQLite connection backing the run ledger
type Database struct {
	db   *sql.DB
	path string
}

// DefaultPath is where the ledger lives unless overridden in the config.
const DefaultPath = "~/.sdforge/sdforge.db"

// Open opens (or creates) the ledger database at the given path.
func Open(path string) (*Database, error) {
	expanded := paths.Expand(path)
	if err := paths.EnsureDir(expanded); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	database := &Database{db: db, path: expanded}
	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return database, nil
}

// initSchema creates the ledger tables
func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		device TEXT NOT NULL,
		board TEXT NOT NULL,
		defconfig TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		error_message TEXT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS run_stages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_stages_run ON run_stages(run_id);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// DB returns the underlying sql.DB
func (d *Database) DB() *sql.DB {
	return d.db
}

// Path returns the database file location
func (d *Database) Path() string {
	return d.path
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}
