// Package sqlite provides the SQLite-backed implementations of the record
// store, raw payload archive, checkpoint store, and run ledger. A single
// Store owns the database connection; the per-port interfaces are exposed
// through wrapper types.
package sqlite
