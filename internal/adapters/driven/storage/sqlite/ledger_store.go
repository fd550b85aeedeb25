package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/ports/driven"
)

// ==================== Checkpoint Store ====================

// checkpointStore implements driven.CheckpointStore.
type checkpointStore struct {
	store *Store
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

// Get retrieves a checkpoint by key.
func (s *checkpointStore) Get(ctx context.Context, key string) (*domain.Checkpoint, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT key, source, last_case_id, last_case_last_checked, last_run_id
		FROM ingestion_checkpoints WHERE key = ?
	`, key)

	var cp domain.Checkpoint
	var lastCaseID, lastRunID sql.NullString
	var lastChecked sql.NullTime
	if err := row.Scan(&cp.Key, &cp.Source, &lastCaseID, &lastChecked, &lastRunID); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning checkpoint: %w", err)
	}

	cp.LastCaseID = lastCaseID.String
	cp.LastRunID = lastRunID.String
	if lastChecked.Valid {
		t := lastChecked.Time.UTC()
		cp.LastCaseLastChecked = &t
	}

	return &cp, nil
}

// Save upserts a checkpoint in a single atomic statement.
func (s *checkpointStore) Save(ctx context.Context, cp domain.Checkpoint) error {
	if cp.Key == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_checkpoints (key, source, last_case_id, last_case_last_checked, last_run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			source = excluded.source,
			last_case_id = excluded.last_case_id,
			last_case_last_checked = excluded.last_case_last_checked,
			last_run_id = excluded.last_run_id,
			updated_at = excluded.updated_at
	`, cp.Key, cp.Source, nullString(cp.LastCaseID),
		nullTimePtr(cp.LastCaseLastChecked), nullString(cp.LastRunID), time.Now().UTC())

	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// ==================== Run Ledger ====================

// runLedger implements driven.RunLedger.
type runLedger struct {
	store *Store
}

var _ driven.RunLedger = (*runLedger)(nil)

// Create inserts a run in its initial state.
func (s *runLedger) Create(ctx context.Context, run domain.Run) error {
	if run.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_runs
			(id, source, status, started_at, requested_since, effective_since,
			 case_limit, checkpoint_key, resumed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, string(run.Status), run.StartedAt.UTC(),
		nullTimePtr(run.RequestedSince), nullTimePtr(run.EffectiveSince),
		run.CaseLimit, nullString(run.CheckpointKey), run.Resumed)

	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// Finish writes the terminal status, finish timestamp, and counters.
func (s *runLedger) Finish(ctx context.Context, run domain.Run) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE ingestion_runs SET
			status = ?,
			finished_at = ?,
			cases_ingested = ?,
			dockets_ingested = ?,
			documents_ingested = ?,
			errors = ?,
			error_message = ?
		WHERE id = ?
	`, string(run.Status), nullTimePtr(run.FinishedAt),
		run.Cases, run.Dockets, run.Documents, run.Errors,
		nullString(run.ErrorMessage), run.ID)

	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID.
func (s *runLedger) Get(ctx context.Context, id string) (*domain.Run, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source, status, started_at, finished_at, requested_since, effective_since,
		       case_limit, checkpoint_key, resumed, cases_ingested, dockets_ingested,
		       documents_ingested, errors, error_message
		FROM ingestion_runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *runLedger) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source, status, started_at, finished_at, requested_since, effective_since,
		       case_limit, checkpoint_key, resumed, cases_ingested, dockets_ingested,
		       documents_ingested, errors, error_message
		FROM ingestion_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// scanRun scans a single run row.
func scanRun(row *sql.Row) (*domain.Run, error) {
	var run domain.Run
	var status string
	var finishedAt, requestedSince, effectiveSince sql.NullTime
	var checkpointKey, errorMessage sql.NullString

	if err := row.Scan(&run.ID, &run.Source, &status, &run.StartedAt,
		&finishedAt, &requestedSince, &effectiveSince,
		&run.CaseLimit, &checkpointKey, &run.Resumed,
		&run.Cases, &run.Dockets, &run.Documents, &run.Errors,
		&errorMessage); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	applyRunNullables(&run, status, finishedAt, requestedSince, effectiveSince, checkpointKey, errorMessage)
	return &run, nil
}

// scanRunRows scans a run from *sql.Rows.
func scanRunRows(rows *sql.Rows) (*domain.Run, error) {
	var run domain.Run
	var status string
	var finishedAt, requestedSince, effectiveSince sql.NullTime
	var checkpointKey, errorMessage sql.NullString

	if err := rows.Scan(&run.ID, &run.Source, &status, &run.StartedAt,
		&finishedAt, &requestedSince, &effectiveSince,
		&run.CaseLimit, &checkpointKey, &run.Resumed,
		&run.Cases, &run.Dockets, &run.Documents, &run.Errors,
		&errorMessage); err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	applyRunNullables(&run, status, finishedAt, requestedSince, effectiveSince, checkpointKey, errorMessage)
	return &run, nil
}

// applyRunNullables copies scanned nullable columns onto the run.
func applyRunNullables(
	run *domain.Run,
	status string,
	finishedAt, requestedSince, effectiveSince sql.NullTime,
	checkpointKey, errorMessage sql.NullString,
) {
	run.Status = domain.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	run.CheckpointKey = checkpointKey.String
	run.ErrorMessage = errorMessage.String
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		run.FinishedAt = &t
	}
	if requestedSince.Valid {
		t := requestedSince.Time.UTC()
		run.RequestedSince = &t
	}
	if effectiveSince.Valid {
		t := effectiveSince.Time.UTC()
		run.EffectiveSince = &t
	}
}
