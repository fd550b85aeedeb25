// Package domain contains the core types for the clearinghouse ingestion
// pipeline: normalized case, docket, and document records, raw payload
// archive entries, checkpoints, and run ledger bookkeeping.
//
// Domain types have no dependencies on storage or transport. They are the
// shared vocabulary between the source client, the orchestrator, and the
// stores.
package domain
