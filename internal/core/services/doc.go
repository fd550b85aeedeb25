// Package services implements the application's use cases: the ingestion
// orchestrator driving source clients into the store, and the heuristic
// document summarizer. Services depend only on core ports, never on
// concrete adapters.
package services
