package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chunkflow/core"
	"github.com/poiesic/chunkflow/storage"
)

// EpisodeStore implements storage.EpisodeStore for BadgerDB.
type EpisodeStore struct {
	backend *Backend
}

var _ storage.EpisodeStore = (*EpisodeStore)(nil)

// NewEpisodeStore creates a new EpisodeStore.
func NewEpisodeStore(backend *Backend) *EpisodeStore {
	return &EpisodeStore{backend: backend}
}

// Close implements storage.EpisodeStore. The backend owns the database.
func (s *EpisodeStore) Close() error {
	return nil
}

// SaveEpisode persists an episode.
func (s *EpisodeStore) SaveEpisode(ctx context.Context, episode *core.Episode) (*core.Episode, error) {
	if episode.Id == "" {
		return nil, fmt.Errorf("episode id cannot be empty")
	}
	if episode.Status == "" {
		episode.Status = core.EpisodeActive
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		if episode.InsertedAt.IsZero() {
			episode.InsertedAt = now
		}
		episode.UpdatedAt = now

		value, err := storage.MarshalEpisode(episode)
		if err != nil {
			return err
		}
		if err := tx.Set(makeEpisodeKey(episode.Id), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return episode, nil
}

// GetEpisodeById retrieves an episode by id.
func (s *EpisodeStore) GetEpisodeById(ctx context.Context, id string) (*core.Episode, error) {
	var episode *core.Episode

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEpisodeKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			episode, err = storage.UnmarshalEpisode(val)
			return err
		})
	}, false)

	if err != nil {
		return nil, err
	}
	return episode, nil
}

// UpdateEpisodeStatus sets an episode's status with a reason.
func (s *EpisodeStore) UpdateEpisodeStatus(ctx context.Context, id string, status core.EpisodeStatus, reason string) error {
	return s.setStatus(ctx, id, status, reason)
}

// RollbackEpisode marks an episode rolled back. A hosted backend would also
// delete the ingested content here; for the local store the status change is
// the rollback.
func (s *EpisodeStore) RollbackEpisode(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, core.EpisodeRolledBack, "rolled back")
}

func (s *EpisodeStore) setStatus(ctx context.Context, id string, status core.EpisodeStatus, reason string) error {
	episode, err := s.GetEpisodeById(ctx, id)
	if err != nil {
		return err
	}

	episode.Status = status
	episode.Reason = reason
	episode.UpdatedAt = time.Now().UTC()

	return s.backend.WithTx(func(tx *badger.Txn) error {
		value, err := storage.MarshalEpisode(episode)
		if err != nil {
			return err
		}
		if err := tx.Set(makeEpisodeKey(id), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
