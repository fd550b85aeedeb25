package driving

import (
	"context"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
)

// Ingestor drives a full or incremental ingestion run.
type Ingestor interface {
	// Run ingests all cases visible past the effective cursor, case by case.
	// It returns the run's Stats even when err is non-nil: by then the run
	// ledger row has been finalized, so any case not reflected in the
	// counters was not committed.
	Run(ctx context.Context, opts domain.RunOptions) (domain.Stats, error)
}
