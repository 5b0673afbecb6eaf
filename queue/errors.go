package queue

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrIngestClientRequired is returned when an ingestion client is not provided.
	ErrIngestClientRequired = errors.New("ingest client required")

	// ErrEmptyDocumentId is returned when a submission has no document id.
	ErrEmptyDocumentId = errors.New("document id cannot be empty")

	// ErrProcessorClosed is returned when submitting to a closed processor.
	ErrProcessorClosed = errors.New("processor is closed")

	// ErrQueueFull is returned when the submission queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
)

// errJobCancelled signals cooperative cancellation inside a job run.
var errJobCancelled = errors.New("job cancelled")
