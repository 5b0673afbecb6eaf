package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// SyncStatus tracks where a chunk is in its downstream sync lifecycle.
type SyncStatus string

const (
	// SyncPending means the chunk has been persisted but not yet pushed downstream.
	SyncPending SyncStatus = "pending"
	// SyncSyncing means an ingestion attempt is currently in flight.
	SyncSyncing SyncStatus = "syncing"
	// SyncSynced means the chunk was accepted downstream and has a remote ID.
	SyncSynced SyncStatus = "synced"
	// SyncFailed means the last ingestion attempt failed.
	SyncFailed SyncStatus = "failed"
)

// Chunk represents a contiguous, bounded slice of a document's text.
// Chunks are created in bulk by the chunker and driven through ingestion
// by the queue processor; failed chunks are repaired by the recovery service.
type Chunk struct {
	Id         string
	DocumentId string
	Content    string

	// StartIndex and EndIndex are offsets into the original document text.
	// Neighboring chunks share a deliberate overlap region, so a chunk's
	// StartIndex may fall inside the previous chunk's range.
	StartIndex int
	EndIndex   int

	// ChunkNumber and TotalChunks are position metadata, stamped in a
	// second pass once the full chunk sequence for a document is known.
	ChunkNumber int
	TotalChunks int

	// ContentHash is a deterministic hash of Content, used to verify that
	// re-chunking an unchanged document produced identical output.
	ContentHash uint64

	SyncStatus       SyncStatus
	SyncAttemptCount int

	// RemoteId is the downstream knowledge-graph service's identifier for
	// this chunk. Set only when SyncStatus is SyncSynced.
	RemoteId string

	// LastSyncError and LastSyncAttempt are diagnostic fields, cleared on
	// successful sync.
	LastSyncError   string
	LastSyncAttempt time.Time

	InsertedAt time.Time
	UpdatedAt  time.Time
}

// ChunkId generates the stable identifier for a chunk from its owning
// document and ordinal position.
func ChunkId(documentId string, chunkNumber int) string {
	return fmt.Sprintf("%s-chunk-%d", documentId, chunkNumber)
}

// HashContent generates a deterministic 64-bit hash of text content using
// BLAKE2b. Identical content always produces the identical hash.
func HashContent(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// JobStatus tracks a processing job's lifecycle in the queue.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs never change
// state again; a failed or cancelled job is retried only via a fresh submit.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ProcessingJob is a transient orchestration record owned by the queue
// processor for the duration of one document-processing request.
type ProcessingJob struct {
	Id         string
	DocumentId string
	UserId     string
	Status     JobStatus
	ChunkIds   []string
	Attempts   int
	Error      string

	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// ProcessingProgress is an advisory snapshot of a running job, rebuilt from
// the chunk repository on restart. It exists for observability only.
type ProcessingProgress struct {
	JobId           string
	DocumentId      string
	TotalChunks     int
	ProcessedChunks int
	CurrentChunk    int

	// EstimatedTimeRemaining is computed from a running average of
	// per-chunk ingestion latency.
	EstimatedTimeRemaining time.Duration

	UpdatedAt time.Time
}

// EpisodeStatus tracks the downstream service's view of an ingestion episode.
type EpisodeStatus string

const (
	EpisodeActive     EpisodeStatus = "active"
	EpisodeFailed     EpisodeStatus = "failed"
	EpisodeRolledBack EpisodeStatus = "rolled_back"
)

// Episode is the downstream service's unit of ingested content. The core
// only needs the referenced chunk ids for rollback; everything else about an
// episode is owned by the downstream system.
type Episode struct {
	Id         string
	DocumentId string
	ChunkIds   []string
	Status     EpisodeStatus
	Reason     string

	InsertedAt time.Time
	UpdatedAt  time.Time
}

// RecoveryStatus tracks a recovery operation's lifecycle.
type RecoveryStatus string

const (
	RecoveryPending    RecoveryStatus = "pending"
	RecoveryInProgress RecoveryStatus = "in_progress"
	RecoveryCompleted  RecoveryStatus = "completed"
	RecoveryFailed     RecoveryStatus = "failed"
)

// RecoveryOperation is a transient record of one recovery service call,
// retained for a bounded window after completion so operators can inspect it.
type RecoveryOperation struct {
	Id         string
	Type       string // "retry", "rollback", or "batch"
	DocumentId string
	ChunkIds   []string
	Status     RecoveryStatus
	Error      string

	StartedAt  time.Time
	FinishedAt time.Time
}
