package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

// commitCase writes a case (and optional dockets/documents) in one transaction.
func commitCase(t *testing.T, store *Store, c domain.Case, dockets []domain.Docket, docs []domain.Document) {
	t.Helper()
	ctx := context.Background()

	tx, err := store.RecordStore().Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback() //nolint:errcheck

	require.NoError(t, tx.UpsertCase(ctx, c))
	for _, d := range dockets {
		require.NoError(t, tx.UpsertDocket(ctx, d))
	}
	for _, d := range docs {
		require.NoError(t, tx.UpsertDocument(ctx, d))
	}
	require.NoError(t, tx.Commit())
}

func countRows(t *testing.T, store *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// ==================== Store Creation Tests ====================

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "clearinghouse.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)

	assert.NoError(t, store.db.Ping())
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Re-opening the same database must not re-run applied migrations.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

// ==================== Record Store Tests ====================

func TestRecordStore_UpsertCaseMergesByKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	commitCase(t, store, domain.Case{
		ID: "case-001", Name: "Doe v. State", Court: "N.D. Cal.",
		State: "CA", Status: "ongoing", LastChecked: timePtr(first),
		Metadata: map[string]any{"jurisdiction": "federal"},
	}, nil, nil)

	later := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	commitCase(t, store, domain.Case{
		ID: "case-001", Name: "Doe v. State of California", Court: "9th Cir.",
		State: "CA", Status: "closed", LastChecked: timePtr(later),
	}, nil, nil)

	got, err := store.RecordStore().GetCase(ctx, "case-001")
	require.NoError(t, err)
	assert.Equal(t, "Doe v. State of California", got.Name)
	assert.Equal(t, "9th Cir.", got.Court)
	assert.Equal(t, "closed", got.Status)
	require.NotNil(t, got.LastChecked)
	assert.True(t, got.LastChecked.Equal(later))

	assert.Equal(t, 1, countRows(t, store, "cases"))
}

func TestRecordStore_GetCaseNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.RecordStore().GetCase(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_CaseDeletionCascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	commitCase(t, store,
		domain.Case{ID: "case-001", Name: "Doe v. State"},
		[]domain.Docket{{ID: "docket-001", CaseID: "case-001", DocketNumber: "3:20-cv-01234", IsMain: true}},
		[]domain.Document{{ID: "doc-001", CaseID: "case-001", DocketID: strPtr("docket-001"), Title: "Complaint"}},
	)

	require.NoError(t, store.RecordStore().DeleteCase(ctx, "case-001"))

	assert.Equal(t, 0, countRows(t, store, "cases"))
	assert.Equal(t, 0, countRows(t, store, "dockets"))
	assert.Equal(t, 0, countRows(t, store, "documents"))
}

func TestRecordStore_DocketDeletionNullifiesDocuments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	commitCase(t, store,
		domain.Case{ID: "case-001", Name: "Doe v. State"},
		[]domain.Docket{{ID: "docket-001", CaseID: "case-001", IsMain: true}},
		[]domain.Document{{ID: "doc-001", CaseID: "case-001", DocketID: strPtr("docket-001"), Title: "Complaint"}},
	)

	require.NoError(t, store.RecordStore().DeleteDocket(ctx, "docket-001"))

	docs, err := store.RecordStore().ListDocuments(ctx, "case-001")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Nil(t, docs[0].DocketID)
	assert.Equal(t, "case-001", docs[0].CaseID)
}

func TestIngestTx_RollbackLeavesNoRows(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tx, err := store.RecordStore().Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.UpsertCase(ctx, domain.Case{ID: "case-001", Name: "Doe v. State"}))
	require.NoError(t, tx.UpsertDocket(ctx, domain.Docket{ID: "docket-001", CaseID: "case-001"}))
	require.NoError(t, tx.Rollback())

	assert.Equal(t, 0, countRows(t, store, "cases"))
	assert.Equal(t, 0, countRows(t, store, "dockets"))
}

// ==================== Raw Payload Archive Tests ====================

func TestIngestTx_ArchivePayloadDedupes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	commitCase(t, store, domain.Case{ID: "case-001", Name: "Doe v. State"}, nil, nil)

	archive := func(runID string, payload map[string]any) {
		t.Helper()
		require.NoError(t, store.RunLedger().Create(ctx, domain.Run{
			ID: runID, Source: "fixture", Status: domain.RunStatusRunning,
			StartedAt: time.Now().UTC(),
		}))
		p, err := domain.NewRawPayload(runID, "fixture", domain.ResourceCase,
			"case-001", "case-001", nil, payload)
		require.NoError(t, err)

		tx, err := store.RecordStore().Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback() //nolint:errcheck
		require.NoError(t, tx.ArchivePayload(ctx, p))
		require.NoError(t, tx.Commit())
	}

	// Same content twice (different key order) archives once.
	archive("run-1", map[string]any{"id": "case-001", "status": "ongoing"})
	archive("run-2", map[string]any{"status": "ongoing", "id": "case-001"})
	assert.Equal(t, 1, countRows(t, store, "raw_payloads"))

	// Changed content archives a new version.
	archive("run-3", map[string]any{"id": "case-001", "status": "closed"})
	assert.Equal(t, 2, countRows(t, store, "raw_payloads"))
}

// ==================== Checkpoint Store Tests ====================

func TestCheckpointStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	checkpoints := store.CheckpointStore()

	_, err := checkpoints.Get(ctx, "live-default")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cursor := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, checkpoints.Save(ctx, domain.Checkpoint{
		Key:                 "live-default",
		Source:              "live",
		LastCaseID:          "case-001",
		LastCaseLastChecked: timePtr(cursor),
		LastRunID:           "run-1",
	}))

	got, err := checkpoints.Get(ctx, "live-default")
	require.NoError(t, err)
	assert.Equal(t, "case-001", got.LastCaseID)
	assert.Equal(t, "run-1", got.LastRunID)
	require.NotNil(t, got.LastCaseLastChecked)
	assert.True(t, got.LastCaseLastChecked.Equal(cursor))

	// Upsert overwrites in place.
	require.NoError(t, checkpoints.Save(ctx, domain.Checkpoint{
		Key: "live-default", Source: "live", LastCaseID: "case-002", LastRunID: "run-2",
	}))
	got, err = checkpoints.Get(ctx, "live-default")
	require.NoError(t, err)
	assert.Equal(t, "case-002", got.LastCaseID)
	assert.Nil(t, got.LastCaseLastChecked)
	assert.Equal(t, 1, countRows(t, store, "ingestion_checkpoints"))
}

func TestCheckpointStore_RejectsEmptyKey(t *testing.T) {
	store := setupTestStore(t)

	err := store.CheckpointStore().Save(context.Background(), domain.Checkpoint{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ==================== Run Ledger Tests ====================

func TestRunLedger_CreateFinishGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ledger := store.RunLedger()

	started := time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC)
	since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Create(ctx, domain.Run{
		ID:             "run-1",
		Source:         "fixture",
		Status:         domain.RunStatusRunning,
		StartedAt:      started,
		RequestedSince: timePtr(since),
		EffectiveSince: timePtr(since),
		CaseLimit:      5,
		CheckpointKey:  "fixture-default",
	}))

	got, err := ledger.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.Equal(t, 5, got.CaseLimit)

	finished := started.Add(time.Minute)
	require.NoError(t, ledger.Finish(ctx, domain.Run{
		ID:           "run-1",
		Status:       domain.RunStatusPartial,
		FinishedAt:   timePtr(finished),
		Cases:        2,
		Dockets:      3,
		Documents:    4,
		Errors:       1,
		ErrorMessage: "listing documents: connection reset",
	}))

	got, err = ledger.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPartial, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(finished))
	assert.Equal(t, 2, got.Cases)
	assert.Equal(t, 3, got.Dockets)
	assert.Equal(t, 4, got.Documents)
	assert.Equal(t, 1, got.Errors)
	assert.Equal(t, "listing documents: connection reset", got.ErrorMessage)
}

func TestRunLedger_GetNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.RunLedger().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunLedger_ListNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ledger := store.RunLedger()

	base := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, ledger.Create(ctx, domain.Run{
			ID:        id,
			Source:    "fixture",
			Status:    domain.RunStatusSuccess,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := ledger.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
}
