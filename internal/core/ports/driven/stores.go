package driven

import (
	"context"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
)

// RecordStore persists normalized cases, dockets, and documents.
//
// Writes happen through IngestTx so that a case and all of its dockets,
// documents, and archived payloads become visible atomically. Upserts merge
// by primary key: an entity with the same identity overwrites all mutable
// fields.
//
// Referential contract: deleting a case cascades to its dockets and
// documents; deleting a docket nullifies the docket link on its documents.
type RecordStore interface {
	// Begin opens the transaction scoping one case's ingestion.
	Begin(ctx context.Context) (IngestTx, error)

	GetCase(ctx context.Context, id string) (*domain.Case, error)
	ListDockets(ctx context.Context, caseID string) ([]domain.Docket, error)
	ListDocuments(ctx context.Context, caseID string) ([]domain.Document, error)

	DeleteCase(ctx context.Context, id string) error
	DeleteDocket(ctx context.Context, id string) error
}

// IngestTx scopes the writes of a single case ingestion. All writes commit
// together or not at all; Rollback after Commit is a no-op so it can be
// deferred unconditionally.
type IngestTx interface {
	UpsertCase(ctx context.Context, c domain.Case) error
	UpsertDocket(ctx context.Context, d domain.Docket) error
	UpsertDocument(ctx context.Context, d domain.Document) error

	// ArchivePayload appends a raw payload row unless one already exists with
	// the same (resource_type, resource_id, payload_sha256). Skipping is an
	// idempotent no-op.
	ArchivePayload(ctx context.Context, p domain.RawPayload) error

	Commit() error
	Rollback() error
}

// CheckpointStore persists resume pointers keyed by checkpoint identifier.
// Save is a single atomic upsert; the read-then-write advance cycle is not
// protected against concurrent writers, so callers serialize runs per key.
type CheckpointStore interface {
	// Get returns the checkpoint for a key, or domain.ErrNotFound.
	Get(ctx context.Context, key string) (*domain.Checkpoint, error)

	// Save upserts the checkpoint row.
	Save(ctx context.Context, cp domain.Checkpoint) error
}

// RunLedger records one row per pipeline execution.
type RunLedger interface {
	// Create inserts the run in its initial running state.
	Create(ctx context.Context, run domain.Run) error

	// Finish writes the terminal status, finish timestamp, and counters.
	Finish(ctx context.Context, run domain.Run) error

	// Get returns a run by id, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Run, error)

	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]domain.Run, error)
}
