package database

import (
	"database/sql"
	"fmt"
	"time"

	"ghmirror/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens (and migrates) a SQLite database.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// CreateSyncOperation inserts a new operation row.
func (d *SQLiteDatabase) CreateSyncOperation(operation, parameters string) (*SyncOperation, error) {
	now := time.Now().UTC()
	res, err := d.db.Exec(
		`INSERT INTO sync_operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'running')`,
		operation, parameters, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting sync operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}

	return &SyncOperation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  now,
		Status:     "running",
	}, nil
}

// FinishSyncOperation stamps the finish time and final status.
func (d *SQLiteDatabase) FinishSyncOperation(id int64, status string) error {
	res, err := d.db.Exec(
		`UPDATE sync_operations SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing sync operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync operation %d not found", id)
	}
	return nil
}

// ListSyncOperations returns the most recent operations, newest first.
func (d *SQLiteDatabase) ListSyncOperations(limit int) ([]*SyncOperation, error) {
	rows, err := d.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM sync_operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	defer rows.Close()

	var ops []*SyncOperation
	for rows.Next() {
		var op SyncOperation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning sync operation: %w", err)
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// CreateTargetOutcome inserts one per-target result row.
func (d *SQLiteDatabase) CreateTargetOutcome(o *TargetOutcome) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := d.db.Exec(
		`INSERT INTO target_outcomes
		 (id, operation_id, repo, path, destination, status, checksum, size, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OperationID, o.Repo, o.Path, o.Destination, o.Status, o.Checksum, o.Size, o.Message, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting target outcome: %w", err)
	}
	return nil
}

// ListTargetOutcomes returns the outcome rows of one operation.
func (d *SQLiteDatabase) ListTargetOutcomes(operationID int64) ([]*TargetOutcome, error) {
	rows, err := d.db.Query(
		`SELECT id, operation_id, repo, path, destination, status, checksum, size, message, created_at
		 FROM target_outcomes WHERE operation_id = ? ORDER BY rowid`, operationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing target outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*TargetOutcome
	for rows.Next() {
		var o TargetOutcome
		if err := rows.Scan(&o.ID, &o.OperationID, &o.Repo, &o.Path, &o.Destination, &o.Status,
			&o.Checksum, &o.Size, &o.Message, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning target outcome: %w", err)
		}
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// Close closes the underlying connection.
func (d *SQLiteDatabase) Close() error {
	return d.db.Close()
}
