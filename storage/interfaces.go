package storage

import (
	"context"
	"time"

	"github.com/poiesic/chunkflow/core"
)

// ChunkUpdate describes a partial update to a chunk record. Nil fields are
// left unchanged. UpdatedAt is maintained by the repository.
type ChunkUpdate struct {
	SyncStatus       *core.SyncStatus
	SyncAttemptCount *int
	RemoteId         *string
	LastSyncError    *string
	LastSyncAttempt  *time.Time
	TotalChunks      *int
}

// Ptr returns a pointer to v, for building ChunkUpdate values inline.
func Ptr[T any](v T) *T {
	return &v
}

// ChunkRepository persists chunk records and their sync status.
// It is the single source of truth for chunk state: the queue processor and
// the recovery service mutate chunks only through it.
// Implementations must be safe for concurrent use.
type ChunkRepository interface {
	// SaveChunks persists one or more chunks. Chunks without a SyncStatus
	// default to pending. Sets InsertedAt/UpdatedAt timestamps.
	// Returns the chunks with timestamps populated.
	SaveChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// FetchChunk retrieves a single chunk by id.
	// Returns ErrNotFound if the chunk doesn't exist.
	FetchChunk(ctx context.Context, chunkId string) (*core.Chunk, error)

	// FetchChunksByDocument retrieves all chunks for a document, ordered by
	// chunk number.
	FetchChunksByDocument(ctx context.Context, documentId string) ([]*core.Chunk, error)

	// FetchFailedChunks retrieves the chunks for a document whose sync
	// status is failed, ordered by chunk number.
	FetchFailedChunks(ctx context.Context, documentId string) ([]*core.Chunk, error)

	// FetchUnrecoverableChunks retrieves failed chunks that have consumed
	// all allowed sync attempts. These require manual intervention and are
	// never retried automatically.
	FetchUnrecoverableChunks(ctx context.Context, documentId string, maxAttempts int) ([]*core.Chunk, error)

	// UpdateChunk applies a partial update to a chunk and returns the
	// updated record. Returns ErrNotFound if the chunk doesn't exist.
	UpdateChunk(ctx context.Context, chunkId string, update ChunkUpdate) (*core.Chunk, error)

	// Close closes the repository and releases resources.
	Close() error
}

// EpisodeStore persists ingestion episodes and mirrors the surface the
// downstream knowledge-graph service exposes for rollback.
type EpisodeStore interface {
	// SaveEpisode persists an episode, setting timestamps.
	SaveEpisode(ctx context.Context, episode *core.Episode) (*core.Episode, error)

	// GetEpisodeById retrieves an episode by id.
	// Returns ErrNotFound if the episode doesn't exist.
	GetEpisodeById(ctx context.Context, id string) (*core.Episode, error)

	// UpdateEpisodeStatus sets an episode's status with a reason.
	UpdateEpisodeStatus(ctx context.Context, id string, status core.EpisodeStatus, reason string) error

	// RollbackEpisode removes the episode's ingested content downstream
	// and marks it rolled back.
	RollbackEpisode(ctx context.Context, id string) error

	// Close closes the store and releases resources.
	Close() error
}
