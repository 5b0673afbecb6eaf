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

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("chunk content cannot be empty")

	// ErrEmptyDocumentId indicates the DocumentId field is empty.
	ErrEmptyDocumentId = errors.New("document id cannot be empty")

	// ErrInvalidOffsets indicates StartIndex/EndIndex are inconsistent
	// with each other or with the content length.
	ErrInvalidOffsets = errors.New("chunk offsets are inconsistent")

	// ErrInvalidChunkNumber indicates ChunkNumber is negative or not less
	// than TotalChunks.
	ErrInvalidChunkNumber = errors.New("chunk number out of range")

	// ErrInvalidSyncStatus indicates an unknown SyncStatus value.
	ErrInvalidSyncStatus = errors.New("invalid sync status")

	// ErrInvalidJobStatus indicates an unknown JobStatus value.
	ErrInvalidJobStatus = errors.New("invalid job status")
)
