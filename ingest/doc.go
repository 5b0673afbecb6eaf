// Package ingest defines the interfaces to the downstream knowledge-graph
// service: pushing chunks, and episode-level operations used for rollback.
//
// The package also owns error classification. Ingestion failures are
// classified as transient (network resets, timeouts, DNS failures, HTTP 429,
// HTTP 5xx) or terminal (validation, other 4xx); only transient failures are
// eligible for automatic retry. Retry and backoff are the callers'
// responsibility, not the client's.
package ingest
