// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// The driver is modernc.org/sqlite, a pure Go build of SQLite, so no CGo
// toolchain is needed. ":memory:" gives every test its own throwaway database.
//
// CONCURRENCY:
// The services never wrap several statements in a transaction. Each write is a
// single statement (INSERT ... ON CONFLICT, UPDATE ... RETURNING, DELETE ...
// RETURNING), so correctness relies on SQLite's per-statement atomicity.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
// Each store is exposed through an accessor (States, Repos, Messages, LineJobs)
// so a single *DB can satisfy several repository interfaces without method
// name clashes.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/dashboard.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// connection so every query sees the same schema and rows.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// States returns the OAuth state store.
func (db *DB) States() *StateDB { return &StateDB{conn: db.conn} }

// Repos returns the repository record store.
func (db *DB) Repos() *RepoDB { return &RepoDB{conn: db.conn} }

// Messages returns the message store.
func (db *DB) Messages() *MessageDB { return &MessageDB{conn: db.conn} }

// LineJobs returns the line-count job store.
func (db *DB) LineJobs() *LineJobDB { return &LineJobDB{conn: db.conn} }

// migrate creates tables and indexes. Every statement is idempotent so it is
// safe to run on each start.
//
// Timestamps are stored as INTEGER unix nanoseconds. This keeps ordering and
// range comparisons exact without depending on the driver's text formatting.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS oauth_states (
			state      TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_oauth_states_created_at ON oauth_states(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating oauth_states table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS repositories (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			full_name      TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			url            TEXT NOT NULL DEFAULT '',
			clone_url      TEXT NOT NULL DEFAULT '',
			stars          INTEGER NOT NULL DEFAULT 0,
			default_branch TEXT NOT NULL DEFAULT '',
			private        INTEGER NOT NULL DEFAULT 0,
			updated_at     INTEGER NOT NULL DEFAULT 0,
			auto_review    INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("creating repositories table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			sender_id   TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content     TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			status      TEXT NOT NULL DEFAULT 'delivered'
		);
		CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("creating messages table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS line_jobs (
			id          TEXT PRIMARY KEY,
			repo_id     TEXT NOT NULL,
			owner_id    TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			total_lines INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_line_jobs_repo_id ON line_jobs(repo_id);
	`)
	if err != nil {
		return fmt.Errorf("creating line_jobs table: %w", err)
	}

	// Databases created before jobs had owners lack the column. Their rows
	// keep an empty owner and are readable by nobody.
	ok, err := db.hasColumn("line_jobs", "owner_id")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.conn.Exec(`ALTER TABLE line_jobs ADD COLUMN owner_id TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("adding line_jobs.owner_id: %w", err)
		}
	}

	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspecting %s: %w", table, err)
	}
	return n > 0, nil
}
