// Package clearinghouse implements source clients for the Clearinghouse
// case-law API (v2.1): an HTTP client with retry, backoff, and proactive
// rate limiting, and a fixture-backed client for offline ingestion and
// tests. Both satisfy the driven.SourceClient port.
package clearinghouse
