package database

import (
	"database/sql"
	"time"
)

// SyncOperation is one recorded invocation of a mutating CLI command,
// typically "Sync". FinishedAt is set when the operation completes.
type SyncOperation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "success" or "error"
}

// TargetOutcome is the per-target result row of one sync operation.
type TargetOutcome struct {
	ID          string // UUID
	OperationID int64
	Repo        string
	Path        string // slash-joined remote path
	Destination string
	Status      string // "synced", "skipped", or "failed"
	Checksum    string
	Size        int64
	Message     string // error text for failed targets
	CreatedAt   time.Time
}

// Database records sync history: one row per run plus one row per target
// processed in that run.
type Database interface {
	// CreateSyncOperation inserts a new operation row and returns it with
	// its auto-increment ID and start time filled in.
	CreateSyncOperation(operation, parameters string) (*SyncOperation, error)

	// FinishSyncOperation stamps the finish time and final status on an
	// operation.
	FinishSyncOperation(id int64, status string) error

	// ListSyncOperations returns the most recent operations, newest first.
	ListSyncOperations(limit int) ([]*SyncOperation, error)

	// CreateTargetOutcome inserts one per-target result row.
	CreateTargetOutcome(o *TargetOutcome) error

	// ListTargetOutcomes returns the outcome rows of one operation in
	// insertion order.
	ListTargetOutcomes(operationID int64) ([]*TargetOutcome, error)

	// Close releases the underlying connection.
	Close() error
}
