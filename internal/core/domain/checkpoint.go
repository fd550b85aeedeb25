package domain

import "time"

// Checkpoint is the durable resume pointer for incremental ingestion, keyed
// by a caller-chosen string. The cursor is advanced only after the
// corresponding case's data has committed, so a resume never skips a case;
// at worst it re-ingests the last committed one (safe, upserts are
// idempotent).
type Checkpoint struct {
	// Key is the caller-chosen checkpoint identifier.
	Key string

	// Source labels which client this checkpoint tracks.
	Source string

	// LastCaseID is the case that most recently advanced the cursor.
	LastCaseID string

	// LastCaseLastChecked is the resume cursor. Monotonically non-decreasing
	// across successful advances for a given key.
	LastCaseLastChecked *time.Time

	// LastRunID is the run that last touched this checkpoint, whether or not
	// it moved the cursor.
	LastRunID string
}

// Advance folds one committed case into the checkpoint. The cursor moves only
// when the case carries a cursor value at least as new as the stored one; the
// run id is recorded unconditionally.
func (c *Checkpoint) Advance(cs Case, runID string) {
	caseTS := NormalizeTime(cs.LastChecked)
	current := NormalizeTime(c.LastCaseLastChecked)

	switch {
	case caseTS != nil && (current == nil || !caseTS.Before(*current)):
		c.LastCaseLastChecked = caseTS
		c.LastCaseID = cs.ID
	case current == nil:
		// No cursor on either side: still remember the case.
		c.LastCaseID = cs.ID
	}

	c.LastRunID = runID
}
