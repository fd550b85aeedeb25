package domain

import "time"

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	// RunStatusRunning is the initial state, set before any case is fetched.
	RunStatusRunning RunStatus = "running"

	// RunStatusSuccess means every processed case committed.
	RunStatusSuccess RunStatus = "success"

	// RunStatusPartial means at least one case failed but the run completed
	// under the continue-on-error policy.
	RunStatusPartial RunStatus = "partial"

	// RunStatusFailed means the run aborted.
	RunStatusFailed RunStatus = "failed"
)

// Run is one row in the run ledger: the parameters, outcome, and counters of
// a single pipeline execution. A run is created in RunStatusRunning and
// finalized exactly once to a terminal status; the pipeline never deletes
// runs. A run left in RunStatusRunning marks an interrupted process.
type Run struct {
	// ID is generated fresh per execution.
	ID string

	// Source labels which client produced the data (e.g., "live", "fixture").
	Source string

	// Status is the current lifecycle state.
	Status RunStatus

	StartedAt  time.Time
	FinishedAt *time.Time

	// RequestedSince is the caller-supplied lower bound; EffectiveSince is the
	// bound actually used after checkpoint resolution.
	RequestedSince *time.Time
	EffectiveSince *time.Time

	// CaseLimit caps how many cases this run may process. Zero means no limit.
	CaseLimit int

	// CheckpointKey is the checkpoint this run advances, if any.
	CheckpointKey string

	// Resumed reports whether the effective cursor came from the checkpoint.
	Resumed bool

	// Counters.
	Cases     int
	Dockets   int
	Documents int
	Errors    int

	// ErrorMessage records the last case-level or fatal error, if any.
	ErrorMessage string
}

// Stats is the summary returned to the caller after a run.
type Stats struct {
	// RunID identifies the ledger row for later audit.
	RunID string

	// EffectiveSince is the cursor the run actually filtered by.
	EffectiveSince *time.Time

	// Resumed reports whether the cursor came from a stored checkpoint.
	Resumed bool

	// Counts of entities committed during this run.
	Cases     int
	Dockets   int
	Documents int

	// Errors counts cases that failed to ingest.
	Errors int
}

// RunOptions are the caller-supplied parameters for one run.
type RunOptions struct {
	// Since is the requested lower bound on the case cursor. Nil means no
	// lower bound.
	Since *time.Time

	// CaseLimit caps the number of cases processed. Zero means unlimited.
	CaseLimit int

	// ResumeFromCheckpoint uses the stored checkpoint cursor when it is later
	// than Since.
	ResumeFromCheckpoint bool
}
