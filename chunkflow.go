// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package chunkflow

import (
	"log/slog"

	"github.com/poiesic/chunkflow/ingest"
	"github.com/poiesic/chunkflow/queue"
	"github.com/poiesic/chunkflow/recovery"
	"github.com/poiesic/chunkflow/storage"
	"github.com/poiesic/chunkflow/storage/badger"
)

// System bundles the storage layer and ingestion client behind one handle so
// callers open the database once and build processors and recovery services
// off it.
type System struct {
	backend  *badger.Backend
	chunks   storage.ChunkRepository
	episodes storage.EpisodeStore
	client   ingest.Client
	logger   *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	inMemory bool
}

// WithInMemoryStorage keeps all chunk state in memory. Intended for tests
// and one-shot runs.
func WithInMemoryStorage() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// NewSystem opens the database at filePath and wires the repositories to the
// given ingestion client.
func NewSystem(filePath string, client ingest.Client, opts ...SystemOption) (*System, error) {
	if client == nil {
		return nil, queue.ErrIngestClientRequired
	}

	options := &systemOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	return &System{
		backend:  backend,
		chunks:   badger.NewChunkRepository(backend),
		episodes: badger.NewEpisodeStore(backend),
		client:   client,
		logger:   slog.Default(),
	}, nil
}

func (s *System) Close() error {
	if err := s.chunks.Close(); err != nil {
		s.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := s.episodes.Close(); err != nil {
		s.logger.Error("error closing episode store", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (s *System) ChunkRepository() storage.ChunkRepository {
	return s.chunks
}

func (s *System) EpisodeStore() storage.EpisodeStore {
	return s.episodes
}

func (s *System) NewQueueProcessor(opts ...queue.Option) (*queue.Processor, error) {
	return queue.New(s.chunks, s.client, opts...)
}

func (s *System) NewRecoveryService(opts ...recovery.Option) (*recovery.Service, error) {
	return recovery.NewService(s.chunks, s.client, s.episodes, opts...)
}
