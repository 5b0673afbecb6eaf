// Package queue provides the document-processing queue: it chunks submitted
// documents, persists the chunks, and drives each one through the ingestion
// client while reporting progress.
//
// Jobs run concurrently up to a fixed worker count; within one job, chunks
// are ingested strictly in chunk-number order. Cancellation is cooperative,
// checked before each chunk. Infrastructure hiccups (storage errors) are
// retried transparently with exponential backoff; application-level chunk
// ingestion failures are not retried here; they accumulate as failed chunks
// for the recovery service to repair in bulk, keeping failure data visible.
package queue
