package driven

import (
	"context"
	"iter"
	"time"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
)

// SourceClient retrieves cases, dockets, and documents from a clearinghouse
// data source.
//
// List methods return finite lazy sequences: pagination happens inside the
// iterator as the consumer advances, and a sequence can be restarted by
// ranging over it again. A non-nil error ends the sequence; transient
// failures are retried inside the client and surface only once retries are
// exhausted.
type SourceClient interface {
	// ListCases yields cases updated strictly after the timestamp, in
	// source-provided order. A nil timestamp means no lower bound.
	ListCases(ctx context.Context, updatedAfter *time.Time) iter.Seq2[domain.Case, error]

	// ListDockets yields the dockets of a case.
	ListDockets(ctx context.Context, caseID string) iter.Seq2[domain.Docket, error]

	// ListDocuments yields the documents of a case.
	ListDocuments(ctx context.Context, caseID string) iter.Seq2[domain.Document, error]

	// GetDocument returns a single document, or domain.ErrNotFound.
	GetDocument(ctx context.Context, caseID, documentID string) (*domain.Document, error)

	// Close releases client resources.
	Close() error
}

// Summarizer produces a plain-text summary for a document. It is a pure
// transform with no failure mode: a degraded default (e.g., "no text
// available") is valid output, not an error.
type Summarizer interface {
	Summarize(doc domain.Document) string
}
