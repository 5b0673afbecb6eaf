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


package recovery

import "errors"

var (
	// ErrChunkRepositoryRequired indicates the service was constructed
	// without a chunk repository.
	ErrChunkRepositoryRequired = errors.New("chunk repository is required")

	// ErrIngestClientRequired indicates the service was constructed
	// without an ingestion client.
	ErrIngestClientRequired = errors.New("ingest client is required")

	// ErrEpisodeServiceRequired indicates the service was constructed
	// without an episode service.
	ErrEpisodeServiceRequired = errors.New("episode service is required")

	// ErrEmptyDocumentId indicates a recovery call without a document id.
	ErrEmptyDocumentId = errors.New("document id cannot be empty")

	// ErrEmptyEpisodeId indicates a rollback call without an episode id.
	ErrEmptyEpisodeId = errors.New("episode id cannot be empty")

	// ErrCircuitOpen indicates the circuit breaker guarding the downstream
	// service is open and the call was not attempted.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrOperationNotFound indicates an unknown recovery operation id.
	ErrOperationNotFound = errors.New("recovery operation not found")

	// ErrOperationNotCancellable indicates the operation already reached a
	// terminal state.
	ErrOperationNotCancellable = errors.New("recovery operation cannot be cancelled")
)
