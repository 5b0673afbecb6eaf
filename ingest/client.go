package ingest

import (
	"context"

	"github.com/poiesic/chunkflow/core"
)

// PushResult is the downstream service's acknowledgment of an ingested chunk.
type PushResult struct {
	// RemoteId is the downstream identifier assigned to the chunk.
	RemoteId string
}

// Client pushes chunks to the downstream knowledge-graph service.
// Push either succeeds or returns a classified error (see Error); it must not
// retry internally, so callers stay in control of backoff and load.
type Client interface {
	Push(ctx context.Context, chunk *core.Chunk) (*PushResult, error)
}

// EpisodeService is the downstream surface needed for episode rollback.
// storage.EpisodeStore satisfies it, so a local store can stand in for the
// hosted service.
type EpisodeService interface {
	GetEpisodeById(ctx context.Context, id string) (*core.Episode, error)
	UpdateEpisodeStatus(ctx context.Context, id string, status core.EpisodeStatus, reason string) error
	RollbackEpisode(ctx context.Context, id string) error
}
