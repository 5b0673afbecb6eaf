// Package recovery repairs failed chunk ingestion. It retries failed chunks
// with exponential backoff, rolls back partially ingested documents through
// their episodes, and runs batch recovery across many documents.
//
// Retries here are deliberate, operator-visible repair passes over chunks the
// queue processor already gave up on. A circuit breaker guards the downstream
// service so a hard outage fails recovery fast instead of grinding through
// every chunk, and chunks that exhaust their attempt budget are surfaced as
// unrecoverable rather than retried forever.
package recovery
