package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/chunkflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSentences produces readable text of at least minLen characters made of
// short numbered sentences.
func buildSentences(minLen int) string {
	var b strings.Builder
	for i := 0; b.Len() < minLen; i++ {
		fmt.Fprintf(&b, "This is sentence number %d in the test document. ", i)
	}
	return b.String()
}

// reassemble rebuilds the original text from a chunk sequence by stripping
// the overlap prefix of every non-first chunk, using the recorded offsets.
func reassemble(t *testing.T, chunks []*core.Chunk) string {
	t.Helper()

	var b strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			b.WriteString(chunk.Content)
			continue
		}

		prefix := chunks[i-1].EndIndex - chunk.StartIndex
		require.GreaterOrEqual(t, prefix, 0, "chunk %d must not start after the previous chunk ends", i)
		require.LessOrEqual(t, prefix, len(chunk.Content), "overlap prefix cannot exceed chunk %d content", i)
		b.WriteString(chunk.Content[prefix:])
	}
	return b.String()
}

func TestSplit_EmptyContent(t *testing.T) {
	chunks := Split("doc-1", "", DefaultOptions())
	assert.Nil(t, chunks)
}

func TestSplit_FastPath(t *testing.T) {
	content := "A short document. It fits in a single chunk."
	chunks := Split("doc-1", content, DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].ChunkNumber)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Equal(t, 0, chunks[0].StartIndex)
	assert.Equal(t, len(content), chunks[0].EndIndex)
	assert.Equal(t, "doc-1-chunk-0", chunks[0].Id)
	assert.Equal(t, core.SyncPending, chunks[0].SyncStatus)
}

func TestSplit_FastPathAtExactLimit(t *testing.T) {
	opts := Options{MaxChunkSize: 100, OverlapSize: 10, PreserveSemanticBoundaries: true}
	content := strings.Repeat("x", 100)

	chunks := Split("doc-1", content, opts)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].TotalChunks)
}

func TestSplit_SemanticExample(t *testing.T) {
	// ~25,500 characters with default limits should yield three chunks.
	content := buildSentences(25500)
	opts := DefaultOptions()

	chunks := Split("doc-1", content, opts)
	require.Len(t, chunks, 3)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), opts.MaxChunkSize, "chunk %d exceeds size bound", i)
		assert.Equal(t, 3, chunk.TotalChunks)
		assert.Equal(t, i, chunk.ChunkNumber)
	}

	// Non-first chunks begin with an overlap drawn from the prior chunk's
	// tail, cut at a sentence boundary.
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		assert.Less(t, cur.StartIndex, prev.EndIndex, "chunk %d should overlap its predecessor", i)
		assert.True(t, strings.HasPrefix(cur.Content, "This is sentence"),
			"chunk %d overlap should start at a sentence boundary, got %q", i, cur.Content[:20])

		overlap := prev.EndIndex - cur.StartIndex
		assert.Equal(t, prev.Content[len(prev.Content)-overlap:], cur.Content[:overlap])
	}

	assert.Equal(t, content, reassemble(t, chunks))
}

func TestSplit_SemanticCoverage(t *testing.T) {
	content := buildSentences(3200)
	opts := Options{MaxChunkSize: 1000, OverlapSize: 100, PreserveSemanticBoundaries: true}

	chunks := Split("doc-1", content, opts)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, content, reassemble(t, chunks))
}

func TestSplit_RunOnSentenceFallsBack(t *testing.T) {
	// A single 50,000-character "sentence" with no punctuation must still
	// split via the sliding window.
	content := strings.Repeat("a", 50000)
	opts := DefaultOptions()

	chunks := Split("doc-1", content, opts)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), opts.MaxChunkSize, "chunk %d exceeds size bound", i)
	}
	assert.Equal(t, content, reassemble(t, chunks))
}

func TestSplit_OversizeSentenceAmongNormalOnes(t *testing.T) {
	// One sentence far above the limit forces the fallback; the bound must
	// hold on every chunk regardless of the path taken.
	content := "A normal opening sentence. " + strings.Repeat("b", 30000) + ". A normal closing sentence."
	opts := DefaultOptions()

	chunks := Split("doc-1", content, opts)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), opts.MaxChunkSize, "chunk %d exceeds size bound", i)
	}
	assert.Equal(t, content, reassemble(t, chunks))
}

func TestSplit_SlidingWindow(t *testing.T) {
	content := strings.Repeat("x", 2500)
	opts := Options{MaxChunkSize: 1000, OverlapSize: 100, PreserveSemanticBoundaries: false}

	chunks := Split("doc-1", content, opts)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].StartIndex)
	assert.Equal(t, 1000, chunks[0].EndIndex)
	assert.Equal(t, 900, chunks[1].StartIndex)
	assert.Equal(t, 1900, chunks[1].EndIndex)
	assert.Equal(t, 1800, chunks[2].StartIndex)
	assert.Equal(t, 2500, chunks[2].EndIndex)

	for _, chunk := range chunks {
		assert.Equal(t, 3, chunk.TotalChunks)
	}
	assert.Equal(t, content, reassemble(t, chunks))
}

func TestSplit_Idempotent(t *testing.T) {
	content := buildSentences(30000)
	opts := DefaultOptions()

	first := Split("doc-1", content, opts)
	second := Split("doc-1", content, opts)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Id, second[i].Id)
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].StartIndex, second[i].StartIndex)
		assert.Equal(t, first[i].EndIndex, second[i].EndIndex)
		assert.Equal(t, first[i].ContentHash, second[i].ContentHash)
	}
}

func TestSplit_WhitespaceOnlyChunksDropped(t *testing.T) {
	content := strings.Repeat(" ", 15000)
	chunks := Split("doc-1", content, DefaultOptions())
	assert.Nil(t, chunks, "whitespace-only content produces no chunks")
}

func TestSplit_OverlapLargerThanWindowClamped(t *testing.T) {
	content := strings.Repeat("y", 500)
	opts := Options{MaxChunkSize: 100, OverlapSize: 200, PreserveSemanticBoundaries: false}

	chunks := Split("doc-1", content, opts)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), 100, "chunk %d exceeds size bound", i)
	}
	assert.Equal(t, content, reassemble(t, chunks))
}

func TestSplit_MultiByteRunesNeverSplitInWindow(t *testing.T) {
	// Run-on CJK text with no sentence boundaries forces the sliding
	// window; an odd size bound would land cuts mid-rune without nudging.
	content := strings.Repeat("日本語テキスト", 200)
	opts := Options{MaxChunkSize: 101, OverlapSize: 11, PreserveSemanticBoundaries: true}

	chunks := Split("doc-cjk", content, opts)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Content), "chunk %d has invalid UTF-8 edges", chunk.ChunkNumber)
		assert.LessOrEqual(t, len(chunk.Content), opts.MaxChunkSize)
		assert.Equal(t, content[chunk.StartIndex:chunk.EndIndex], chunk.Content)
	}
	assert.Equal(t, content, reassemble(t, chunks))
}

func TestSplit_MultiByteRunesNeverSplitInOverlapCut(t *testing.T) {
	// Long accented sentences make the overlap window fall inside a
	// sentence, exercising the raw overlap cut on multi-byte content.
	content := strings.Repeat("La qualité et la régularité des résultats dépendent des caractères accentués présents. ", 40)
	opts := Options{MaxChunkSize: 300, OverlapSize: 45, PreserveSemanticBoundaries: true}

	chunks := Split("doc-fr", content, opts)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Content), "chunk %d has invalid UTF-8 edges", chunk.ChunkNumber)
		assert.LessOrEqual(t, len(chunk.Content), opts.MaxChunkSize)
	}
	assert.Equal(t, content, reassemble(t, chunks))
}

func TestSentenceSpans_Basic(t *testing.T) {
	spans := sentenceSpans("First sentence. Second one! Third? Done.")
	require.Len(t, spans, 4)
}

func TestSentenceSpans_Abbreviations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"title", "Dr. Smith arrived late. He sat down.", 2},
		{"multiple titles", "Mr. and Mrs. Smith met Prof. Jones. They talked.", 2},
		{"company", "She works at Acme Inc. in the city. It is far away.", 2},
		{"degree", "He holds a Ph.D. in physics. She does too.", 2},
		{"latin", "Bring supplies, e.g. rope and tape. Then leave.", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := sentenceSpans(tt.content)
			assert.Len(t, spans, tt.want)
		})
	}
}

func TestSentenceSpans_Decimals(t *testing.T) {
	spans := sentenceSpans("The value of pi is 3.14 exactly. Next sentence.")
	assert.Len(t, spans, 2)
}

func TestSentenceSpans_NoBoundaries(t *testing.T) {
	spans := sentenceSpans("no terminating punctuation anywhere in this text")
	assert.Len(t, spans, 1)
}

func TestSentenceSpans_PartitionExactly(t *testing.T) {
	content := "One. Two! Three? Dr. Four went home. The end"
	spans := sentenceSpans(content)

	var b strings.Builder
	last := 0
	for _, sp := range spans {
		require.Equal(t, last, sp.Start, "spans must be contiguous")
		b.WriteString(content[sp.Start:sp.End])
		last = sp.End
	}
	assert.Equal(t, content, b.String())
}
