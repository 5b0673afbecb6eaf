package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/chunkflow/core"
	"github.com/poiesic/chunkflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (storage.ChunkRepository, storage.EpisodeStore) {
	t.Helper()

	chunkRepo, episodeStore, backend, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	return chunkRepo, episodeStore
}

func makeChunks(documentId string, n int) []*core.Chunk {
	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		content := "content of chunk " + core.ChunkId(documentId, i)
		chunks[i] = &core.Chunk{
			Id:          core.ChunkId(documentId, i),
			DocumentId:  documentId,
			Content:     content,
			StartIndex:  i * 100,
			EndIndex:    (i + 1) * 100,
			ChunkNumber: i,
			TotalChunks: n,
			ContentHash: core.HashContent(content),
		}
	}
	return chunks
}

func TestChunkRepository_SaveAndFetch(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	saved, err := repo.SaveChunks(ctx, makeChunks("doc-1", 3)...)
	require.NoError(t, err)
	require.Len(t, saved, 3)

	for _, chunk := range saved {
		assert.Equal(t, core.SyncPending, chunk.SyncStatus, "status defaults to pending")
		assert.False(t, chunk.InsertedAt.IsZero())
	}

	got, err := repo.FetchChunk(ctx, "doc-1-chunk-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.DocumentId)
	assert.Equal(t, 1, got.ChunkNumber)
}

func TestChunkRepository_FetchMissing(t *testing.T) {
	repo, _ := setupTestRepo(t)

	_, err := repo.FetchChunk(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChunkRepository_FetchByDocumentOrdered(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	// 12 chunks exercises numeric ordering past single digits.
	_, err := repo.SaveChunks(ctx, makeChunks("doc-1", 12)...)
	require.NoError(t, err)

	// A second document must not leak into the first one's results.
	_, err = repo.SaveChunks(ctx, makeChunks("doc-2", 2)...)
	require.NoError(t, err)

	chunks, err := repo.FetchChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 12)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkNumber, "chunks must come back in chunk-number order")
	}
}

func TestChunkRepository_UpdateChunkPartial(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.SaveChunks(ctx, makeChunks("doc-1", 1)...)
	require.NoError(t, err)

	now := time.Now().UTC()
	updated, err := repo.UpdateChunk(ctx, "doc-1-chunk-0", storage.ChunkUpdate{
		SyncStatus:       storage.Ptr(core.SyncFailed),
		SyncAttemptCount: storage.Ptr(1),
		LastSyncError:    storage.Ptr("connection reset"),
		LastSyncAttempt:  storage.Ptr(now),
	})
	require.NoError(t, err)

	assert.Equal(t, core.SyncFailed, updated.SyncStatus)
	assert.Equal(t, 1, updated.SyncAttemptCount)
	assert.Equal(t, "connection reset", updated.LastSyncError)
	// Untouched fields survive a partial update.
	assert.Equal(t, "content of chunk doc-1-chunk-0", updated.Content)
	assert.Equal(t, 1, updated.TotalChunks)
}

func TestChunkRepository_UpdateMissing(t *testing.T) {
	repo, _ := setupTestRepo(t)

	_, err := repo.UpdateChunk(context.Background(), "nope", storage.ChunkUpdate{
		SyncStatus: storage.Ptr(core.SyncSynced),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChunkRepository_FailedIndex(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.SaveChunks(ctx, makeChunks("doc-1", 4)...)
	require.NoError(t, err)

	for _, id := range []string{"doc-1-chunk-1", "doc-1-chunk-3"} {
		_, err = repo.UpdateChunk(ctx, id, storage.ChunkUpdate{
			SyncStatus:       storage.Ptr(core.SyncFailed),
			SyncAttemptCount: storage.Ptr(2),
		})
		require.NoError(t, err)
	}

	failed, err := repo.FetchFailedChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, 1, failed[0].ChunkNumber)
	assert.Equal(t, 3, failed[1].ChunkNumber)

	// Recovering a chunk removes it from the failed index.
	_, err = repo.UpdateChunk(ctx, "doc-1-chunk-1", storage.ChunkUpdate{
		SyncStatus: storage.Ptr(core.SyncSynced),
		RemoteId:   storage.Ptr("remote-1"),
	})
	require.NoError(t, err)

	failed, err = repo.FetchFailedChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].ChunkNumber)
}

func TestChunkRepository_FetchUnrecoverable(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.SaveChunks(ctx, makeChunks("doc-1", 3)...)
	require.NoError(t, err)

	// chunk 0: failed, out of attempts; chunk 1: failed, attempts remain.
	_, err = repo.UpdateChunk(ctx, "doc-1-chunk-0", storage.ChunkUpdate{
		SyncStatus:       storage.Ptr(core.SyncFailed),
		SyncAttemptCount: storage.Ptr(3),
	})
	require.NoError(t, err)
	_, err = repo.UpdateChunk(ctx, "doc-1-chunk-1", storage.ChunkUpdate{
		SyncStatus:       storage.Ptr(core.SyncFailed),
		SyncAttemptCount: storage.Ptr(1),
	})
	require.NoError(t, err)

	unrecoverable, err := repo.FetchUnrecoverableChunks(ctx, "doc-1", 3)
	require.NoError(t, err)
	require.Len(t, unrecoverable, 1)
	assert.Equal(t, "doc-1-chunk-0", unrecoverable[0].Id)
}

func TestEpisodeStore_SaveGetUpdate(t *testing.T) {
	_, episodes := setupTestRepo(t)
	ctx := context.Background()

	saved, err := episodes.SaveEpisode(ctx, &core.Episode{
		Id:         "ep-1",
		DocumentId: "doc-1",
		ChunkIds:   []string{"doc-1-chunk-0", "doc-1-chunk-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.EpisodeActive, saved.Status)

	got, err := episodes.GetEpisodeById(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1-chunk-0", "doc-1-chunk-1"}, got.ChunkIds)

	require.NoError(t, episodes.UpdateEpisodeStatus(ctx, "ep-1", core.EpisodeFailed, "ingestion aborted"))

	got, err = episodes.GetEpisodeById(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, core.EpisodeFailed, got.Status)
	assert.Equal(t, "ingestion aborted", got.Reason)

	require.NoError(t, episodes.RollbackEpisode(ctx, "ep-1"))
	got, err = episodes.GetEpisodeById(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, core.EpisodeRolledBack, got.Status)
}

func TestEpisodeStore_GetMissing(t *testing.T) {
	_, episodes := setupTestRepo(t)

	_, err := episodes.GetEpisodeById(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
