package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// MemoryDatabase is an in-memory Database for tests and for runs where
// history should not be persisted.
type MemoryDatabase struct {
	mu       sync.Mutex
	nextID   int64
	ops      []*SyncOperation
	outcomes []*TargetOutcome
}

var _ Database = (*MemoryDatabase)(nil)

// NewMemoryDatabase creates an empty in-memory database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{nextID: 1}
}

// CreateSyncOperation inserts a new operation row.
func (d *MemoryDatabase) CreateSyncOperation(operation, parameters string) (*SyncOperation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	op := &SyncOperation{
		ID:         d.nextID,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  time.Now().UTC(),
		Status:     "running",
	}
	d.nextID++
	d.ops = append(d.ops, op)
	return op, nil
}

// FinishSyncOperation stamps the finish time and final status.
func (d *MemoryDatabase) FinishSyncOperation(id int64, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, op := range d.ops {
		if op.ID == id {
			op.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
			op.Status = status
			return nil
		}
	}
	return fmt.Errorf("sync operation %d not found", id)
}

// ListSyncOperations returns the most recent operations, newest first.
func (d *MemoryDatabase) ListSyncOperations(limit int) ([]*SyncOperation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ops []*SyncOperation
	for i := len(d.ops) - 1; i >= 0 && len(ops) < limit; i-- {
		ops = append(ops, d.ops[i])
	}
	return ops, nil
}

// CreateTargetOutcome inserts one per-target result row.
func (d *MemoryDatabase) CreateTargetOutcome(o *TargetOutcome) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	d.outcomes = append(d.outcomes, o)
	return nil
}

// ListTargetOutcomes returns the outcome rows of one operation.
func (d *MemoryDatabase) ListTargetOutcomes(operationID int64) ([]*TargetOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result []*TargetOutcome
	for _, o := range d.outcomes {
		if o.OperationID == operationID {
			result = append(result, o)
		}
	}
	return result, nil
}

// Close is a no-op for the in-memory database.
func (d *MemoryDatabase) Close() error { return nil }
