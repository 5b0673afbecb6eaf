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


// Package storage provides the storage abstraction layer for chunkflow.
//
// This package defines repository interfaces that decouple storage
// implementation from the chunking, queueing, and recovery logic. The chunk
// repository is the single source of truth for chunk sync state; all mutation
// goes through it, so any backend (BadgerDB, a hosted table store, in-memory)
// can be used interchangeably.
//
// Constructors in backend packages return these interfaces rather than
// concrete types, which keeps callers decoupled from a specific backend and
// makes tests trivial to set up against the in-memory backend.
package storage
