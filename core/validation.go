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


package core

import "fmt"

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - DocumentId must not be empty
//   - Content must not be empty
//   - EndIndex must be greater than StartIndex, and StartIndex non-negative
//   - ChunkNumber must be in [0, TotalChunks) when TotalChunks is set
//   - SyncStatus must be a known value
//
// NOT validated (populated by orchestration):
//   - RemoteId (empty until the chunk is synced)
//   - ContentHash (0 is valid before hashing)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.DocumentId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyDocumentId)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.StartIndex < 0 || chunk.EndIndex <= chunk.StartIndex {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidOffsets)
	}

	if chunk.TotalChunks > 0 && (chunk.ChunkNumber < 0 || chunk.ChunkNumber >= chunk.TotalChunks) {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidChunkNumber)
	}

	if chunk.SyncStatus != "" {
		if err := ValidateSyncStatus(chunk.SyncStatus); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
		}
	}

	return nil
}

// ValidateSyncStatus validates that a SyncStatus has a known value.
func ValidateSyncStatus(status SyncStatus) error {
	switch status {
	case SyncPending, SyncSyncing, SyncSynced, SyncFailed:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSyncStatus, status)
}

// ValidateJobStatus validates that a JobStatus has a known value.
func ValidateJobStatus(status JobStatus) error {
	switch status {
	case JobQueued, JobProcessing, JobCompleted, JobFailed, JobCancelled:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidJobStatus, status)
}
