package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wesm/ghsync/internal/models"
)

// DB represents the sync history database
type DB struct {
	*sql.DB
}

// Counts are the per-kind outcome totals of one run
type Counts struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Conflicts int
}

// Run is one recorded pull or push
type Run struct {
	ID         int64
	Repository string
	Direction  string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Issues     Counts
	Ideas      Counts
	// Error is empty for runs that completed
	Error string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		id INTEGER PRIMARY KEY,
		node_id TEXT,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		full_name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository TEXT NOT NULL,
		direction TEXT NOT NULL,
		dry_run BOOLEAN NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		issues_created INTEGER NOT NULL DEFAULT 0,
		issues_updated INTEGER NOT NULL DEFAULT 0,
		issues_unchanged INTEGER NOT NULL DEFAULT 0,
		issues_skipped INTEGER NOT NULL DEFAULT 0,
		issues_conflicts INTEGER NOT NULL DEFAULT 0,
		ideas_created INTEGER NOT NULL DEFAULT 0,
		ideas_updated INTEGER NOT NULL DEFAULT 0,
		ideas_unchanged INTEGER NOT NULL DEFAULT 0,
		ideas_skipped INTEGER NOT NULL DEFAULT 0,
		ideas_conflicts INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sync_runs_repository ON sync_runs(repository, started_at);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		repository TEXT NOT NULL,
		direction TEXT NOT NULL,
		last_sync_time TIMESTAMP NOT NULL,
		PRIMARY KEY (repository, direction)
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveRepository saves a repository to the database
func (db *DB) SaveRepository(repo *models.Repository) error {
	query := `
	INSERT INTO repositories (id, node_id, owner, name, full_name)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(full_name) DO UPDATE SET
		node_id = excluded.node_id,
		owner = excluded.owner,
		name = excluded.name
	`

	_, err := db.Exec(query, repo.ID, repo.NodeID, repo.Owner, repo.Name, repo.FullName)
	if err != nil {
		return fmt.Errorf("failed to save repository: %w", err)
	}

	return nil
}

// GetRepositoryByFullName gets a repository by its full name
func (db *DB) GetRepositoryByFullName(fullName string) (*models.Repository, error) {
	query := `SELECT id, COALESCE(node_id, ''), owner, name, full_name FROM repositories WHERE full_name = ?`

	var repo models.Repository
	err := db.QueryRow(query, fullName).Scan(&repo.ID, &repo.NodeID, &repo.Owner, &repo.Name, &repo.FullName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return &repo, nil
}

// RecordRun stores a finished run and sets its ID. A completed run that was
// not a dry run also becomes the repository's last sync in its direction.
func (db *DB) RecordRun(run *Run) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO sync_runs (
		repository, direction, dry_run, started_at, finished_at,
		issues_created, issues_updated, issues_unchanged, issues_skipped, issues_conflicts,
		ideas_created, ideas_updated, ideas_unchanged, ideas_skipped, ideas_conflicts,
		error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		run.Repository, run.Direction, run.DryRun, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Issues.Created, run.Issues.Updated, run.Issues.Unchanged, run.Issues.Skipped, run.Issues.Conflicts,
		run.Ideas.Created, run.Ideas.Updated, run.Ideas.Unchanged, run.Ideas.Skipped, run.Ideas.Conflicts,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sync run ID: %w", err)
	}

	if !run.DryRun && run.Error == "" {
		if err := updateLastSyncTime(tx, run.Repository, run.Direction, run.FinishedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}
	run.ID = id
	return nil
}

// ListRuns returns the most recent runs for a repository, newest first
func (db *DB) ListRuns(repoFullName string, limit int) ([]Run, error) {
	query := `
	SELECT id, repository, direction, dry_run, started_at, finished_at,
		issues_created, issues_updated, issues_unchanged, issues_skipped, issues_conflicts,
		ideas_created, ideas_updated, ideas_unchanged, ideas_skipped, ideas_conflicts,
		error
	FROM sync_runs
	WHERE repository = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`

	rows, err := db.Query(query, repoFullName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Repository, &r.Direction, &r.DryRun, &r.StartedAt, &r.FinishedAt,
			&r.Issues.Created, &r.Issues.Updated, &r.Issues.Unchanged, &r.Issues.Skipped, &r.Issues.Conflicts,
			&r.Ideas.Created, &r.Ideas.Updated, &r.Ideas.Unchanged, &r.Ideas.Skipped, &r.Ideas.Conflicts,
			&r.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sync runs: %w", err)
	}

	return runs, nil
}

// GetLastSyncTime gets the last completed sync time for a repository in one
// direction ("pull" or "push")
func (db *DB) GetLastSyncTime(repoFullName, direction string) (time.Time, error) {
	var lastSyncTime time.Time
	query := `SELECT last_sync_time FROM sync_metadata WHERE repository = ? AND direction = ?`

	err := db.QueryRow(query, repoFullName, direction).Scan(&lastSyncTime)
	if err != nil {
		if err == sql.ErrNoRows {
			// If no sync metadata exists, return zero time
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return lastSyncTime, nil
}

func updateLastSyncTime(tx *sql.Tx, repoFullName, direction string, syncTime time.Time) error {
	query := `
	INSERT INTO sync_metadata (repository, direction, last_sync_time)
	VALUES (?, ?, ?)
	ON CONFLICT(repository, direction) DO UPDATE SET
		last_sync_time = excluded.last_sync_time
	`

	_, err := tx.Exec(query, repoFullName, direction, syncTime.UTC())
	if err != nil {
		return fmt.Errorf("failed to update last sync time: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
