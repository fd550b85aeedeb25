package domain

import "time"

// Case is a normalized litigation case as reported by the source.
// The source assigns stable string IDs; a case ID is unique within a source.
type Case struct {
	// ID is the source-assigned case identifier.
	ID string

	// Name is the case caption.
	Name string

	// Court is the court handling the case.
	Court string

	// State is the jurisdictional state.
	State string

	// Status is the source's case status label (e.g., "ongoing", "closed").
	Status string

	// LastChecked is the source's notion of when the case was last updated.
	// It is the cursor field for incremental ingestion. Nil when the source
	// does not report one.
	LastChecked *time.Time

	// DocumentsURL and DocketsURL point back at the source's sub-resources.
	DocumentsURL string
	DocketsURL   string

	// Metadata holds the source payload fields that are not normalized.
	Metadata map[string]any
}

// Docket is a normalized docket belonging to a case. Dockets are created or
// updated whenever their parent case is ingested and are never independently
// deleted by the pipeline.
type Docket struct {
	// ID is the source-assigned docket identifier.
	ID string

	// CaseID references the ingested parent case.
	CaseID string

	// DocketNumber is the court's docket number, when known.
	DocketNumber string

	// Court and State may differ from the parent case for transferred dockets.
	Court string
	State string

	// IsMain marks the primary docket of a multi-docket case.
	IsMain bool

	// Metadata holds the source payload fields that are not normalized.
	Metadata map[string]any
}

// Document is a normalized filing or opinion attached to a case.
type Document struct {
	// ID is the source-assigned document identifier.
	ID string

	// CaseID references the ingested parent case.
	CaseID string

	// DocketID references the docket this document was filed on. Nil when the
	// source provides no docket association.
	DocketID *string

	// Title is the document title.
	Title string

	// Type is the document type label (e.g., "Order/Opinion", "Complaint").
	Type string

	// FiledDate is when the document was filed, when known.
	FiledDate *time.Time

	// Court is the court the document was filed in.
	Court string

	// ExternalURL and TextURL point at the source's copies of the document.
	ExternalURL string
	TextURL     string

	// HasText reports that the source claims retrievable text for this
	// document, independent of whether Text is populated at ingestion time.
	HasText bool

	// Text is the full document text, when fetched.
	Text string

	// Summary is computed by the summarizer during ingestion.
	Summary string

	// Metadata holds the source payload fields that are not normalized.
	Metadata map[string]any
}

// NormalizeTime coerces a timestamp to UTC so cursor comparisons never mix
// zoned and naive values. SQLite round-trips may drop zone information.
// Returns nil for nil input.
func NormalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
