package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/custodia-labs/clearinghouse-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/ports/driven"
)

// fakeClient is an in-memory SourceClient with per-case failure injection.
// Its listing semantics mirror the real clients: cases in cursor order,
// strict > filtering, cursorless cases always yielded.
type fakeClient struct {
	cases     []domain.Case
	dockets   map[string][]domain.Docket
	documents map[string][]domain.Document

	failDocumentsFor string
}

var _ driven.SourceClient = (*fakeClient)(nil)

func (c *fakeClient) ListCases(_ context.Context, updatedAfter *time.Time) iter.Seq2[domain.Case, error] {
	return func(yield func(domain.Case, error) bool) {
		for _, cs := range c.cases {
			if updatedAfter != nil && cs.LastChecked != nil && !cs.LastChecked.After(*updatedAfter) {
				continue
			}
			if !yield(cs, nil) {
				return
			}
		}
	}
}

func (c *fakeClient) ListDockets(_ context.Context, caseID string) iter.Seq2[domain.Docket, error] {
	return func(yield func(domain.Docket, error) bool) {
		for _, d := range c.dockets[caseID] {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (c *fakeClient) ListDocuments(_ context.Context, caseID string) iter.Seq2[domain.Document, error] {
	return func(yield func(domain.Document, error) bool) {
		if caseID == c.failDocumentsFor {
			yield(domain.Document{}, fmt.Errorf("simulated source failure for %s", caseID))
			return
		}
		for _, d := range c.documents[caseID] {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (c *fakeClient) GetDocument(_ context.Context, caseID, documentID string) (*domain.Document, error) {
	for _, d := range c.documents[caseID] {
		if d.ID == documentID {
			doc := d
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (c *fakeClient) Close() error { return nil }

func ts(value string) *time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	t = t.UTC()
	return &t
}

// newFakeClient builds a two-case dataset: each case has one docket and two
// documents, so a full run yields 2 cases, 2 dockets, 4 documents.
func newFakeClient() *fakeClient {
	docketID1 := "docket-001"
	docketID2 := "docket-002"
	return &fakeClient{
		cases: []domain.Case{
			{
				ID:          "case-001",
				Name:        "Doe v. Board of Education",
				Court:       "N.D. Cal.",
				State:       "California",
				Status:      "ongoing",
				LastChecked: ts("2023-05-01T12:30:00Z"),
				Metadata:    map[string]any{"summary": "School discipline class action."},
			},
			{
				ID:          "case-002",
				Name:        "Smith v. Department of Corrections",
				Court:       "S.D.N.Y.",
				State:       "New York",
				Status:      "closed",
				LastChecked: ts("2023-06-15T09:00:00Z"),
				Metadata:    map[string]any{"summary": "Conditions-of-confinement suit."},
			},
		},
		dockets: map[string][]domain.Docket{
			"case-001": {{
				ID: docketID1, CaseID: "case-001", DocketNumber: "3:21-cv-01234",
				Court: "N.D. Cal.", State: "California", IsMain: true,
				Metadata: map[string]any{"filing_year": 2021},
			}},
			"case-002": {{
				ID: docketID2, CaseID: "case-002", DocketNumber: "1:19-cv-05678",
				Court: "S.D.N.Y.", State: "New York", IsMain: true,
				Metadata: map[string]any{"filing_year": 2019},
			}},
		},
		documents: map[string][]domain.Document{
			"case-001": {
				{
					ID: "doc-001", CaseID: "case-001", DocketID: &docketID1,
					Title: "Complaint", Type: "Complaint", Court: "N.D. Cal.",
					HasText: true, Text: "Plaintiffs bring this action. The policy is unlawful.",
					Metadata: map[string]any{"page_count": 42},
				},
				{
					ID: "doc-002", CaseID: "case-001", DocketID: &docketID1,
					Title: "Class Certification Order", Type: "Order/Opinion", Court: "N.D. Cal.",
					HasText: true, Text: "The motion is granted.",
					Metadata: map[string]any{"page_count": 12},
				},
			},
			"case-002": {
				{
					ID: "doc-003", CaseID: "case-002", DocketID: &docketID2,
					Title: "Consent Decree", Type: "Settlement Agreement", Court: "S.D.N.Y.",
					HasText: true, Text: "The parties agree to the following terms.",
					Metadata: map[string]any{"page_count": 30},
				},
				{
					ID: "doc-004", CaseID: "case-002", DocketID: &docketID2,
					Title: "Final Judgment", Type: "Order/Opinion", Court: "S.D.N.Y.",
					Metadata: map[string]any{"page_count": 3},
				},
			},
		},
	}
}

func newTestService(t *testing.T, client driven.SourceClient, opts IngestorOptions) (*IngestionService, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewIngestionService(
		client,
		store.RecordStore(),
		store.CheckpointStore(),
		store.RunLedger(),
		NewHeuristicSummarizer(2),
		opts,
	)
	return svc, store
}

func defaultOptions() IngestorOptions {
	return IngestorOptions{
		Source:             "fixture",
		CheckpointKey:      "test-checkpoint",
		ArchiveRawPayloads: true,
		ContinueOnError:    true,
	}
}

func countRows(t *testing.T, store *sqlite.Store, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite", store.Path())
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestRun_IngestsFullDataset(t *testing.T) {
	svc, store := newTestService(t, newFakeClient(), defaultOptions())
	ctx := context.Background()

	stats, err := svc.Run(ctx, domain.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Cases)
	assert.Equal(t, 2, stats.Dockets)
	assert.Equal(t, 4, stats.Documents)
	assert.Equal(t, 0, stats.Errors)
	assert.False(t, stats.Resumed)

	run, err := store.RunLedger().Get(ctx, stats.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, run.Cases)
	assert.Equal(t, 4, run.Documents)
	require.NotNil(t, run.FinishedAt)

	// Summaries are computed during ingestion; doc-004 has no text.
	docs, err := store.RecordStore().ListDocuments(ctx, "case-002")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.NotEmpty(t, doc.Summary)
		if doc.ID == "doc-004" {
			assert.Contains(t, doc.Summary, "No text available for summarization yet.")
		}
	}

	cp, err := store.CheckpointStore().Get(ctx, "test-checkpoint")
	require.NoError(t, err)
	assert.Equal(t, "case-002", cp.LastCaseID)
	assert.Equal(t, stats.RunID, cp.LastRunID)
	require.NotNil(t, cp.LastCaseLastChecked)
	assert.Equal(t, *ts("2023-06-15T09:00:00Z"), cp.LastCaseLastChecked.UTC())
}

func TestRun_RepeatedRunsAreIdempotent(t *testing.T) {
	svc, store := newTestService(t, newFakeClient(), defaultOptions())
	ctx := context.Background()

	first, err := svc.Run(ctx, domain.RunOptions{})
	require.NoError(t, err)
	second, err := svc.Run(ctx, domain.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.Cases, second.Cases)
	assert.Equal(t, first.Documents, second.Documents)

	// Unchanged payloads dedupe: 2 cases + 2 dockets + 4 documents, once.
	assert.Equal(t, 8, countRows(t, store, "raw_payloads"))
	assert.Equal(t, 2, countRows(t, store, "cases"))
	assert.Equal(t, 4, countRows(t, store, "documents"))

	// But every run gets its own ledger row.
	assert.Equal(t, 2, countRows(t, store, "ingestion_runs"))
}

func TestRun_ResumeFromCheckpoint(t *testing.T) {
	svc, store := newTestService(t, newFakeClient(), defaultOptions())
	ctx := context.Background()

	first, err := svc.Run(ctx, domain.RunOptions{CaseLimit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Cases)

	cp, err := store.CheckpointStore().Get(ctx, "test-checkpoint")
	require.NoError(t, err)
	assert.Equal(t, "case-001", cp.LastCaseID)

	second, err := svc.Run(ctx, domain.RunOptions{ResumeFromCheckpoint: true})
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	require.NotNil(t, second.EffectiveSince)
	assert.Equal(t, *ts("2023-05-01T12:30:00Z"), second.EffectiveSince.UTC())

	// Strict > filtering: only the remaining case is processed.
	assert.Equal(t, 1, second.Cases)
	assert.Equal(t, 1, second.Dockets)
	assert.Equal(t, 2, second.Documents)

	cp, err = store.CheckpointStore().Get(ctx, "test-checkpoint")
	require.NoError(t, err)
	assert.Equal(t, "case-002", cp.LastCaseID)
	assert.Equal(t, second.RunID, cp.LastRunID)
}

func TestRun_ExplicitSinceBeatsOlderCheckpoint(t *testing.T) {
	svc, _ := newTestService(t, newFakeClient(), defaultOptions())
	ctx := context.Background()

	_, err := svc.Run(ctx, domain.RunOptions{CaseLimit: 1})
	require.NoError(t, err)

	// Caller-supplied since is later than the stored checkpoint cursor.
	since := ts("2023-06-01T00:00:00Z")
	stats, err := svc.Run(ctx, domain.RunOptions{Since: since, ResumeFromCheckpoint: true})
	require.NoError(t, err)
	assert.False(t, stats.Resumed)
	require.NotNil(t, stats.EffectiveSince)
	assert.Equal(t, since.UTC(), stats.EffectiveSince.UTC())
	assert.Equal(t, 1, stats.Cases)
}

func TestRun_CheckpointNeverRegresses(t *testing.T) {
	client := newFakeClient()
	svc, store := newTestService(t, client, defaultOptions())
	ctx := context.Background()

	first, err := svc.Run(ctx, domain.RunOptions{})
	require.NoError(t, err)

	// A later run that only sees the older case must not move the cursor
	// backward, though it still records itself as the last run.
	client.cases = client.cases[:1]
	second, err := svc.Run(ctx, domain.RunOptions{})
	require.NoError(t, err)
	require.NotEqual(t, first.RunID, second.RunID)

	cp, err := store.CheckpointStore().Get(ctx, "test-checkpoint")
	require.NoError(t, err)
	assert.Equal(t, "case-002", cp.LastCaseID)
	require.NotNil(t, cp.LastCaseLastChecked)
	assert.Equal(t, *ts("2023-06-15T09:00:00Z"), cp.LastCaseLastChecked.UTC())
	assert.Equal(t, second.RunID, cp.LastRunID)
}

func TestRun_ContinueOnErrorFinishesPartial(t *testing.T) {
	client := newFakeClient()
	client.failDocumentsFor = "case-001"
	svc, store := newTestService(t, client, defaultOptions())
	ctx := context.Background()

	stats, err := svc.Run(ctx, domain.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Cases)
	assert.Equal(t, 1, stats.Errors)

	// A later success never re-escalates partial back to success.
	run, lerr := store.RunLedger().Get(ctx, stats.RunID)
	require.NoError(t, lerr)
	assert.Equal(t, domain.RunStatusPartial, run.Status)
	assert.Contains(t, run.ErrorMessage, "case-001")

	// The failed case rolled back wholesale: no case row, no dockets.
	_, gerr := store.RecordStore().GetCase(ctx, "case-001")
	assert.ErrorIs(t, gerr, domain.ErrNotFound)
	dockets, derr := store.RecordStore().ListDockets(ctx, "case-001")
	require.NoError(t, derr)
	assert.Empty(t, dockets)

	// Checkpoint reflects only the committed case.
	cp, cerr := store.CheckpointStore().Get(ctx, "test-checkpoint")
	require.NoError(t, cerr)
	assert.Equal(t, "case-002", cp.LastCaseID)
}

func TestRun_StrictModeAborts(t *testing.T) {
	client := newFakeClient()
	client.failDocumentsFor = "case-001"
	opts := defaultOptions()
	opts.ContinueOnError = false
	svc, store := newTestService(t, client, opts)
	ctx := context.Background()

	stats, err := svc.Run(ctx, domain.RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRunAborted))

	// case-001 fails first, so nothing was committed.
	assert.Equal(t, 0, stats.Cases)
	assert.Equal(t, 1, stats.Errors)

	run, lerr := store.RunLedger().Get(ctx, stats.RunID)
	require.NoError(t, lerr)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	require.NotNil(t, run.FinishedAt)
	assert.NotEmpty(t, run.ErrorMessage)

	// case-002 was never reached.
	_, gerr := store.RecordStore().GetCase(ctx, "case-002")
	assert.ErrorIs(t, gerr, domain.ErrNotFound)
}

func TestRun_ArchiveDisabled(t *testing.T) {
	opts := defaultOptions()
	opts.ArchiveRawPayloads = false
	svc, store := newTestService(t, newFakeClient(), opts)

	stats, err := svc.Run(context.Background(), domain.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Cases)
	assert.Equal(t, 0, countRows(t, store, "raw_payloads"))
}

func TestRun_NoCheckpointKeySkipsCheckpointing(t *testing.T) {
	opts := defaultOptions()
	opts.CheckpointKey = ""
	svc, store := newTestService(t, newFakeClient(), opts)
	ctx := context.Background()

	_, err := svc.Run(ctx, domain.RunOptions{ResumeFromCheckpoint: true})
	require.NoError(t, err)
	assert.Equal(t, 0, countRows(t, store, "ingestion_checkpoints"))
}
