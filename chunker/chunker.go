package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/chunkflow/core"
)

// Split chunks document text into an ordered, fully materialized sequence of
// bounded chunks. Identical inputs always yield identical output.
//
// Content no longer than MaxChunkSize is returned as a single chunk without
// invoking the splitting algorithm. Longer content is split semantically by
// default, falling back to the sliding window whenever sentence splitting
// yields no usable boundaries or cannot honor the size bound.
//
// Empty content yields no chunks. Split never fails on well-formed input.
func Split(documentId, content string, opts Options) []*core.Chunk {
	opts = opts.normalize()

	if content == "" {
		return nil
	}

	// Fast path: the whole document fits in one chunk.
	if len(content) <= opts.MaxChunkSize {
		return materialize(documentId, content, []span{{Start: 0, End: len(content)}})
	}

	var spans []span
	if opts.PreserveSemanticBoundaries {
		spans = semanticSpans(content, opts.MaxChunkSize, opts.OverlapSize)
	}

	// Sliding-window fallback: semantic mode disabled, no usable sentence
	// boundaries, or a chunk that would exceed the bound (for example a
	// single run-on sentence longer than MaxChunkSize).
	if !validSpans(spans, opts.MaxChunkSize) {
		spans = windowSpans(content, opts.MaxChunkSize, opts.OverlapSize)
	}

	return materialize(documentId, content, spans)
}

// validSpans reports whether a semantic split produced a usable multi-chunk
// sequence with every chunk within the size bound.
func validSpans(spans []span, maxSize int) bool {
	if len(spans) < 2 {
		return false
	}
	for _, sp := range spans {
		if sp.End-sp.Start > maxSize {
			return false
		}
	}
	return true
}

// semanticSpans greedily accumulates sentences into chunks. When appending
// the next sentence would exceed maxSize, the current chunk is closed and the
// next one opens with an overlap region pulled from the closed chunk's tail.
func semanticSpans(content string, maxSize, overlap int) []span {
	sentences := sentenceSpans(content)
	if len(sentences) <= 1 {
		return nil
	}

	var out []span
	curStart := 0
	curEnd := 0

	for _, sent := range sentences {
		if curEnd > curStart && sent.End-curStart > maxSize {
			out = append(out, span{Start: curStart, End: curEnd})

			// Shrink the overlap when the incoming sentence is large,
			// so overlap plus sentence still fits in one chunk.
			want := overlap
			if sentLen := sent.End - sent.Start; want > maxSize-sentLen {
				want = maxSize - sentLen
			}
			curStart = overlapStart(content, sentences, curStart, curEnd, want)
		}
		curEnd = sent.End
	}

	if curEnd > curStart {
		out = append(out, span{Start: curStart, End: curEnd})
	}

	return out
}

// overlapStart picks where the next chunk begins, given that the previous
// chunk covered [chunkStart, chunkEnd). It prefers the latest sentence start
// inside the overlap window, falling back to a raw cut nudged forward onto a
// rune boundary. The overlap never reaches back past the previous chunk's
// own start.
func overlapStart(content string, sentences []span, chunkStart, chunkEnd, want int) int {
	if want <= 0 {
		return chunkEnd
	}

	lo := chunkEnd - want
	if lo < chunkStart {
		lo = chunkStart
	}

	best := -1
	for _, sent := range sentences {
		if sent.Start >= lo && sent.Start < chunkEnd && sent.Start > best {
			best = sent.Start
		}
	}
	if best >= 0 {
		return best
	}

	return ceilRune(content, lo)
}

// windowSpans advances a fixed-size window across the content with a step of
// maxSize-overlap, guaranteeing the size bound for any input. Window edges
// are pulled back onto rune boundaries so no chunk starts or ends inside a
// multi-byte rune.
func windowSpans(content string, maxSize, overlap int) []span {
	contentLen := len(content)

	var out []span
	start := 0
	for start < contentLen {
		end := start + maxSize
		if end >= contentLen {
			end = contentLen
		} else {
			end = floorRune(content, end)
			if end <= start {
				// A single rune wider than the window; emit it whole
				// rather than loop forever.
				end = ceilRune(content, start+1)
			}
		}
		out = append(out, span{Start: start, End: end})
		if end == contentLen {
			break
		}

		next := ceilRune(content, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// floorRune moves i back to the start of the rune it points into.
func floorRune(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// ceilRune moves i forward to the next rune start.
func ceilRune(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// materialize turns spans into chunk records. Chunks whose content trims to
// nothing are dropped. TotalChunks is stamped in a second pass once the final
// count is known.
func materialize(documentId, content string, spans []span) []*core.Chunk {
	chunks := make([]*core.Chunk, 0, len(spans))

	for _, sp := range spans {
		text := content[sp.Start:sp.End]
		if strings.TrimSpace(text) == "" {
			continue
		}

		number := len(chunks)
		chunks = append(chunks, &core.Chunk{
			Id:          core.ChunkId(documentId, number),
			DocumentId:  documentId,
			Content:     text,
			StartIndex:  sp.Start,
			EndIndex:    sp.End,
			ChunkNumber: number,
			ContentHash: core.HashContent(text),
			SyncStatus:  core.SyncPending,
		})
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, chunk := range chunks {
		chunk.TotalChunks = len(chunks)
	}

	return chunks
}
