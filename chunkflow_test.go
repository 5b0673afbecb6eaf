package chunkflow

import (
	"context"
	"testing"

	"github.com/poiesic/chunkflow/core"
	"github.com/poiesic/chunkflow/ingest"
	"github.com/poiesic/chunkflow/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct{}

func (stubClient) Push(ctx context.Context, chunk *core.Chunk) (*ingest.PushResult, error) {
	return &ingest.PushResult{RemoteId: "remote-" + chunk.Id}, nil
}

func TestNewSystemRequiresClient(t *testing.T) {
	_, err := NewSystem("", nil, WithInMemoryStorage())
	assert.ErrorIs(t, err, queue.ErrIngestClientRequired)
}

func TestSystemWiring(t *testing.T) {
	system, err := NewSystem("", stubClient{}, WithInMemoryStorage())
	require.NoError(t, err)
	defer system.Close()

	ctx := context.Background()
	chunk := &core.Chunk{
		Id:         core.ChunkId("doc-1", 0),
		DocumentId: "doc-1",
		Content:    "hello world",
		EndIndex:   11,
	}
	_, err = system.ChunkRepository().SaveChunks(ctx, chunk)
	require.NoError(t, err)

	fetched, err := system.ChunkRepository().FetchChunk(ctx, chunk.Id)
	require.NoError(t, err)
	assert.Equal(t, "hello world", fetched.Content)

	_, err = system.EpisodeStore().SaveEpisode(ctx, &core.Episode{
		Id:         "ep-1",
		DocumentId: "doc-1",
		ChunkIds:   []string{chunk.Id},
		Status:     core.EpisodeActive,
	})
	require.NoError(t, err)

	processor, err := system.NewQueueProcessor(queue.WithWorkers(1))
	require.NoError(t, err)
	processor.Close()

	service, err := system.NewRecoveryService()
	require.NoError(t, err)

	result, err := service.RollbackEpisode(ctx, "ep-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksReset)
}
