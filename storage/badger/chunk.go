package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chunkflow/core"
	"github.com/poiesic/chunkflow/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{backend: backend}
}

// Close implements storage.ChunkRepository. The backend owns the database,
// so there is nothing to release here.
func (r *ChunkRepository) Close() error {
	return nil
}

// SaveChunks persists one or more chunks.
func (r *ChunkRepository) SaveChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chunk := range chunks {
			if chunk.SyncStatus == "" {
				chunk.SyncStatus = core.SyncPending
			}
			if err := core.ValidateChunk(chunk); err != nil {
				return err
			}

			chunk.InsertedAt = now
			chunk.UpdatedAt = now

			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(chunk.Id), value); err != nil {
				return err
			}

			docKey := makeDocumentIndexKey(chunk.DocumentId, chunk.ChunkNumber)
			if err := tx.Set(docKey, []byte(chunk.Id)); err != nil {
				return err
			}

			if chunk.SyncStatus == core.SyncFailed {
				failKey := makeFailedIndexKey(chunk.DocumentId, chunk.ChunkNumber)
				if err := tx.Set(failKey, []byte(chunk.Id)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// FetchChunk retrieves a single chunk by id.
func (r *ChunkRepository) FetchChunk(ctx context.Context, chunkId string) (*core.Chunk, error) {
	var chunk *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		chunk, err = readChunk(tx, makeChunkKey(chunkId))
		if err != nil {
			return err
		}
		if chunk == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// FetchChunksByDocument retrieves all chunks for a document in chunk-number order.
func (r *ChunkRepository) FetchChunksByDocument(ctx context.Context, documentId string) ([]*core.Chunk, error) {
	return r.fetchByIndex(makePartialDocumentIndexKey(documentId), nil)
}

// FetchFailedChunks retrieves a document's failed chunks in chunk-number order.
func (r *ChunkRepository) FetchFailedChunks(ctx context.Context, documentId string) ([]*core.Chunk, error) {
	// The record is authoritative; the index can briefly lag a status
	// change, so filter on the loaded chunk as well.
	return r.fetchByIndex(makePartialFailedIndexKey(documentId), func(chunk *core.Chunk) bool {
		return chunk.SyncStatus == core.SyncFailed
	})
}

// FetchUnrecoverableChunks retrieves failed chunks out of sync attempts.
func (r *ChunkRepository) FetchUnrecoverableChunks(ctx context.Context, documentId string, maxAttempts int) ([]*core.Chunk, error) {
	return r.fetchByIndex(makePartialFailedIndexKey(documentId), func(chunk *core.Chunk) bool {
		return chunk.SyncStatus == core.SyncFailed && chunk.SyncAttemptCount >= maxAttempts
	})
}

// fetchByIndex iterates an index prefix, loads each referenced chunk, and
// keeps the ones accepted by keep (nil keeps everything).
func (r *ChunkRepository) fetchByIndex(prefix []byte, keep func(*core.Chunk) bool) ([]*core.Chunk, error) {
	var chunks []*core.Chunk

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var chunkId string
			if err := it.Item().Value(func(val []byte) error {
				chunkId = string(val)
				return nil
			}); err != nil {
				return err
			}

			chunk, err := readChunk(tx, makeChunkKey(chunkId))
			if err != nil {
				return err
			}
			if chunk == nil {
				// Dangling index entry; skip rather than fail the read.
				continue
			}
			if keep == nil || keep(chunk) {
				chunks = append(chunks, chunk)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// UpdateChunk applies a partial update and maintains the failed-status index.
func (r *ChunkRepository) UpdateChunk(ctx context.Context, chunkId string, update storage.ChunkUpdate) (*core.Chunk, error) {
	var updated *core.Chunk

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeChunkKey(chunkId)
		chunk, err := readChunk(tx, key)
		if err != nil {
			return err
		}
		if chunk == nil {
			return storage.ErrNotFound
		}

		oldStatus := chunk.SyncStatus

		if update.SyncStatus != nil {
			if err := core.ValidateSyncStatus(*update.SyncStatus); err != nil {
				return err
			}
			chunk.SyncStatus = *update.SyncStatus
		}
		if update.SyncAttemptCount != nil {
			chunk.SyncAttemptCount = *update.SyncAttemptCount
		}
		if update.RemoteId != nil {
			chunk.RemoteId = *update.RemoteId
		}
		if update.LastSyncError != nil {
			chunk.LastSyncError = *update.LastSyncError
		}
		if update.LastSyncAttempt != nil {
			chunk.LastSyncAttempt = *update.LastSyncAttempt
		}
		if update.TotalChunks != nil {
			chunk.TotalChunks = *update.TotalChunks
		}
		chunk.UpdatedAt = time.Now().UTC()

		value, err := storage.MarshalChunk(chunk)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}

		failKey := makeFailedIndexKey(chunk.DocumentId, chunk.ChunkNumber)
		switch {
		case chunk.SyncStatus == core.SyncFailed && oldStatus != core.SyncFailed:
			if err := tx.Set(failKey, []byte(chunk.Id)); err != nil {
				return err
			}
		case chunk.SyncStatus != core.SyncFailed && oldStatus == core.SyncFailed:
			if err := tx.Delete(failKey); err != nil {
				return err
			}
		}

		updated = chunk
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return updated, nil
}

// readChunk loads and unmarshals a chunk, returning nil when the key is absent.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chunk, nil
}
