package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	chunkRecordPrefix   = "chkrec"
	chunkDocumentPrefix = "chkdoc"
	chunkFailedPrefix   = "chkfail"
	episodeRecordPrefix = "epirec"
)

// makeChunkKey generates a key for a chunk record by ID.
func makeChunkKey(chunkId string) []byte {
	return []byte(fmt.Sprintf("%s:%s", chunkRecordPrefix, chunkId))
}

// makeDocumentIndexKey generates a composite key for the per-document index.
// Format: prefix:documentId:chunkNumber
// The chunk number is written in BigEndian order so lexicographic iteration
// visits chunks in ascending chunk-number order.
func makeDocumentIndexKey(documentId string, chunkNumber int) []byte {
	prefix := []byte(chunkDocumentPrefix + ":" + documentId + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkNumber))
	return buf
}

// makePartialDocumentIndexKey generates the iteration prefix for a document's
// chunk index.
func makePartialDocumentIndexKey(documentId string) []byte {
	return []byte(chunkDocumentPrefix + ":" + documentId + ":")
}

// makeFailedIndexKey generates a composite key for the failed-status index.
// Format: prefix:documentId:chunkNumber
func makeFailedIndexKey(documentId string, chunkNumber int) []byte {
	prefix := []byte(chunkFailedPrefix + ":" + documentId + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkNumber))
	return buf
}

// makePartialFailedIndexKey generates the iteration prefix for a document's
// failed-chunk index.
func makePartialFailedIndexKey(documentId string) []byte {
	return []byte(chunkFailedPrefix + ":" + documentId + ":")
}

// makeEpisodeKey generates a key for an episode record by ID.
func makeEpisodeKey(episodeId string) []byte {
	return []byte(fmt.Sprintf("%s:%s", episodeRecordPrefix, episodeId))
}
