package chunker

// span is a half-open [Start, End) interval into the document text.
// Sentence spans partition the text exactly: each span includes the
// terminator punctuation and any whitespace that follows it, so
// concatenating all spans reproduces the original text byte for byte.
type span struct {
	Start int
	End   int
}

// abbreviations that end with a period without terminating a sentence.
// Lookup is case-insensitive against this lowercase set.
var abbreviations = map[string]struct{}{
	"dr":   {},
	"mr":   {},
	"mrs":  {},
	"ms":   {},
	"prof": {},
	"sr":   {},
	"jr":   {},
	"st":   {},
	"vs":   {},
	"etc":  {},
	"inc":  {},
	"ltd":  {},
	"co":   {},
	"corp": {},
	"ave":  {},
	"e.g":  {},
	"i.e":  {},
	"ph.d": {},
	"u.s":  {},
	"a.m":  {},
	"p.m":  {},
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '.'
}

func lowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// isAbbreviation reports whether the word ending at the period at dot
// (exclusive) is a known non-terminating abbreviation.
func isAbbreviation(content string, sentStart, dot int) bool {
	w := dot
	for w > sentStart && isWordByte(content[w-1]) {
		w--
	}
	if w == dot {
		return false
	}

	word := make([]byte, 0, dot-w)
	for i := w; i < dot; i++ {
		word = append(word, lowerByte(content[i]))
	}

	_, ok := abbreviations[string(word)]
	return ok
}

// sentenceSpans splits content into sentence-like units on terminator
// punctuation (".", "!", "?") followed by whitespace or end of text.
// Known abbreviations do not terminate a sentence. The returned spans
// partition content exactly; text with no usable boundaries comes back as
// a single span.
func sentenceSpans(content string) []span {
	n := len(content)
	var spans []span

	start := 0
	i := 0
	for i < n {
		c := content[i]
		if c != '.' && c != '!' && c != '?' {
			i++
			continue
		}

		// Consume a run of terminators ("...", "?!").
		j := i + 1
		for j < n && (content[j] == '.' || content[j] == '!' || content[j] == '?') {
			j++
		}

		if c == '.' && j == i+1 && isAbbreviation(content, start, i) {
			i = j
			continue
		}

		if j >= n {
			spans = append(spans, span{Start: start, End: n})
			start = n
			break
		}

		if !isSpace(content[j]) {
			// Mid-token period (decimals, URLs, "Ph.D"): not a boundary.
			i = j
			continue
		}

		// Fold the trailing whitespace run into this sentence so that
		// spans partition the text exactly.
		k := j
		for k < n && isSpace(content[k]) {
			k++
		}
		spans = append(spans, span{Start: start, End: k})
		start = k
		i = k
	}

	if start < n {
		spans = append(spans, span{Start: start, End: n})
	}

	return spans
}
