package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/ports/driven"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/ports/driving"
	"github.com/custodia-labs/clearinghouse-cli/internal/logger"
)

// IngestorOptions is the fixed policy of an IngestionService, as opposed to
// the per-run domain.RunOptions.
type IngestorOptions struct {
	// Source labels runs and archived payloads (e.g., "live", "fixture").
	Source string

	// CheckpointKey selects the resume pointer this service advances.
	// Empty disables checkpointing entirely.
	CheckpointKey string

	// ArchiveRawPayloads controls whether source payloads are archived
	// alongside the normalized rows.
	ArchiveRawPayloads bool

	// ContinueOnError keeps the run going after a case-level failure,
	// finishing as partial instead of aborting.
	ContinueOnError bool
}

// IngestionService walks the source case by case and keeps three records
// current: the normalized tables, the raw payload archive, and the resume
// checkpoint. Each case commits in one transaction; the checkpoint advances
// only after that commit, so resume pointers never run ahead of durable
// writes.
type IngestionService struct {
	client      driven.SourceClient
	records     driven.RecordStore
	checkpoints driven.CheckpointStore
	ledger      driven.RunLedger
	summarizer  driven.Summarizer
	opts        IngestorOptions
}

var _ driving.Ingestor = (*IngestionService)(nil)

// NewIngestionService wires an orchestrator from its collaborators.
func NewIngestionService(
	client driven.SourceClient,
	records driven.RecordStore,
	checkpoints driven.CheckpointStore,
	ledger driven.RunLedger,
	summarizer driven.Summarizer,
	opts IngestorOptions,
) *IngestionService {
	if opts.Source == "" {
		opts.Source = "unknown"
	}
	return &IngestionService{
		client:      client,
		records:     records,
		checkpoints: checkpoints,
		ledger:      ledger,
		summarizer:  summarizer,
		opts:        opts,
	}
}

// Run executes one ingestion pass. The returned Stats are valid even when
// err is non-nil; by then the ledger row has been finalized.
func (s *IngestionService) Run(ctx context.Context, opts domain.RunOptions) (domain.Stats, error) {
	runID := uuid.NewString()
	requested := domain.NormalizeTime(opts.Since)
	effective := requested
	resumed := false

	if opts.ResumeFromCheckpoint && s.opts.CheckpointKey != "" {
		checkpointSince, err := s.checkpointSince(ctx)
		if err != nil {
			return domain.Stats{RunID: runID}, err
		}
		if checkpointSince != nil && (effective == nil || checkpointSince.After(*effective)) {
			effective = checkpointSince
			resumed = true
		}
	}

	stats := domain.Stats{RunID: runID, EffectiveSince: effective, Resumed: resumed}

	run := domain.Run{
		ID:             runID,
		Source:         s.opts.Source,
		Status:         domain.RunStatusRunning,
		StartedAt:      time.Now().UTC(),
		RequestedSince: requested,
		EffectiveSince: effective,
		CaseLimit:      opts.CaseLimit,
		CheckpointKey:  s.opts.CheckpointKey,
		Resumed:        resumed,
	}
	if err := s.ledger.Create(ctx, run); err != nil {
		return stats, fmt.Errorf("create run record: %w", err)
	}

	logger.Info("starting ingestion run %s (source=%s, since=%s, resumed=%t)",
		runID, s.opts.Source, formatCursor(effective), resumed)

	finalStatus := domain.RunStatusSuccess
	var fatalErr error
	var errorMessage string

	// The ledger row is finalized exactly once, even on abort or
	// cancellation. WithoutCancel lets the terminal write land after the
	// run's context is gone.
	defer func() {
		now := time.Now().UTC()
		run.Status = finalStatus
		run.FinishedAt = &now
		run.Cases = stats.Cases
		run.Dockets = stats.Dockets
		run.Documents = stats.Documents
		run.Errors = stats.Errors
		run.ErrorMessage = errorMessage
		if err := s.ledger.Finish(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("finalizing run %s: %v", runID, err)
		}
		logger.Info("ingestion run %s finished: status=%s cases=%d dockets=%d documents=%d errors=%d",
			runID, finalStatus, stats.Cases, stats.Dockets, stats.Documents, stats.Errors)
	}()

	yielded := 0
	for cs, err := range s.client.ListCases(ctx, effective) {
		if err != nil {
			finalStatus = domain.RunStatusFailed
			fatalErr = fmt.Errorf("list cases: %w", err)
			errorMessage = fatalErr.Error()
			break
		}
		if opts.CaseLimit > 0 && yielded >= opts.CaseLimit {
			logger.Info("run %s reached case limit %d", runID, opts.CaseLimit)
			break
		}
		yielded++

		caseErr := s.processCase(ctx, runID, cs, &stats)
		if caseErr == nil {
			continue
		}

		stats.Errors++
		errorMessage = caseErr.Error()
		logger.Warn("run %s: case %s failed: %v", runID, cs.ID, caseErr)

		if !s.opts.ContinueOnError {
			finalStatus = domain.RunStatusFailed
			fatalErr = fmt.Errorf("case %s: %w", cs.ID, errors.Join(domain.ErrRunAborted, caseErr))
			errorMessage = fatalErr.Error()
			break
		}
		if finalStatus == domain.RunStatusSuccess {
			finalStatus = domain.RunStatusPartial
		}
	}

	if fatalErr == nil && ctx.Err() != nil {
		finalStatus = domain.RunStatusFailed
		fatalErr = ctx.Err()
		errorMessage = fatalErr.Error()
	}

	return stats, fatalErr
}

// processCase ingests one case transactionally and, on success, advances the
// checkpoint and the run counters. A checkpoint failure after the commit
// counts as a case error: the data is durable but the resume pointer is
// stale, which the caller should know about.
func (s *IngestionService) processCase(ctx context.Context, runID string, cs domain.Case, stats *domain.Stats) error {
	dockets, documents, err := s.ingestCase(ctx, runID, cs)
	if err != nil {
		return err
	}
	stats.Cases++
	stats.Dockets += dockets
	stats.Documents += documents

	if s.opts.CheckpointKey != "" {
		if err := s.advanceCheckpoint(ctx, cs, runID); err != nil {
			return err
		}
	}
	return nil
}

// ingestCase writes one case with its dockets, documents, and raw payloads
// inside a single transaction. Partial writes never become visible.
func (s *IngestionService) ingestCase(ctx context.Context, runID string, cs domain.Case) (dockets, documents int, err error) {
	tx, err := s.records.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin case transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := tx.UpsertCase(ctx, cs); err != nil {
		return 0, 0, fmt.Errorf("upsert case: %w", err)
	}
	if err := s.archive(ctx, tx, runID, domain.ResourceCase, cs.ID, cs.ID, nil, cs.Metadata); err != nil {
		return 0, 0, err
	}

	for docket, derr := range s.client.ListDockets(ctx, cs.ID) {
		if derr != nil {
			return dockets, documents, fmt.Errorf("list dockets: %w", derr)
		}
		if err := tx.UpsertDocket(ctx, docket); err != nil {
			return dockets, documents, fmt.Errorf("upsert docket %s: %w", docket.ID, err)
		}
		dockets++
		docketID := docket.ID
		if err := s.archive(ctx, tx, runID, domain.ResourceDocket, docket.ID, docket.CaseID, &docketID, docket.Metadata); err != nil {
			return dockets, documents, err
		}
	}

	for doc, derr := range s.client.ListDocuments(ctx, cs.ID) {
		if derr != nil {
			return dockets, documents, fmt.Errorf("list documents: %w", derr)
		}
		doc.Summary = s.summarizer.Summarize(doc)
		if err := tx.UpsertDocument(ctx, doc); err != nil {
			return dockets, documents, fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
		documents++
		if err := s.archive(ctx, tx, runID, domain.ResourceDocument, doc.ID, doc.CaseID, doc.DocketID, doc.Metadata); err != nil {
			return dockets, documents, err
		}
	}

	if err := tx.Commit(); err != nil {
		return dockets, documents, fmt.Errorf("commit case %s: %w", cs.ID, err)
	}
	return dockets, documents, nil
}

func (s *IngestionService) archive(
	ctx context.Context,
	tx driven.IngestTx,
	runID string,
	resourceType domain.ResourceType,
	resourceID, caseID string,
	docketID *string,
	payload map[string]any,
) error {
	if !s.opts.ArchiveRawPayloads {
		return nil
	}
	raw, err := domain.NewRawPayload(runID, s.opts.Source, resourceType, resourceID, caseID, docketID, payload)
	if err != nil {
		return fmt.Errorf("archive %s %s: %w", resourceType, resourceID, err)
	}
	if err := tx.ArchivePayload(ctx, raw); err != nil {
		return fmt.Errorf("archive %s %s: %w", resourceType, resourceID, err)
	}
	return nil
}

// advanceCheckpoint moves the resume pointer after a case commit. The cursor
// never regresses; the run id always updates.
func (s *IngestionService) advanceCheckpoint(ctx context.Context, cs domain.Case, runID string) error {
	cp, err := s.checkpoints.Get(ctx, s.opts.CheckpointKey)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cp = &domain.Checkpoint{Key: s.opts.CheckpointKey, Source: s.opts.Source}
	case err != nil:
		return fmt.Errorf("load checkpoint: %w", err)
	}

	cp.Advance(cs, runID)
	if err := s.checkpoints.Save(ctx, *cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// checkpointSince returns the stored cursor for this service's checkpoint
// key, or nil when no checkpoint exists yet.
func (s *IngestionService) checkpointSince(ctx context.Context) (*time.Time, error) {
	cp, err := s.checkpoints.Get(ctx, s.opts.CheckpointKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return domain.NormalizeTime(cp.LastCaseLastChecked), nil
}

func formatCursor(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(time.RFC3339)
}
