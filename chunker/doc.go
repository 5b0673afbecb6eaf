// Package chunker splits document text into bounded, overlap-preserving
// chunks suitable for downstream knowledge-graph ingestion.
//
// Two algorithms are provided: semantic chunking, which accumulates
// sentence-like units and cuts overlap regions at sentence boundaries, and
// sliding-window chunking, a fixed-width fallback that guarantees the size
// bound for any input. Semantic chunking falls back to the sliding window
// whenever it cannot honor the bound, so callers always receive a valid,
// bounded chunk sequence.
//
// Chunking is pure and deterministic: identical inputs yield byte-identical
// chunk sequences, and no I/O is performed.
package chunker
