package chunker

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Separators are tried in order; the first one found inside the window wins.
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Span is a chunk together with its rune offsets in the source text.
type Span struct {
	Text  string
	Start int
	End   int
}

// RecursiveSplitter cuts text into windows of at most ChunkSize runes.
// Consecutive windows share exactly ChunkOverlap runes. Inside a window it
// prefers to end on a paragraph, line, sentence or word boundary, and only
// falls back to a hard cut when none of them fits.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   [][]rune
}

func NewRecursiveSplitter(chunkSize, chunkOverlap int) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}

	seps := make([][]rune, len(defaultSeparators))
	for i, s := range defaultSeparators {
		seps[i] = []rune(s)
	}

	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   seps,
	}
}

func (s *RecursiveSplitter) ChunkSize() int    { return s.chunkSize }
func (s *RecursiveSplitter) ChunkOverlap() int { return s.chunkOverlap }

// Split returns the chunk texts in document order.
func (s *RecursiveSplitter) Split(text string) []string {
	spans := s.SplitSpans(text)
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.Text
	}
	return out
}

// SplitSpans is Split with rune offsets attached.
func (s *RecursiveSplitter) SplitSpans(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var spans []Span
	pos := 0
	for pos < n {
		if n-pos <= s.chunkSize {
			spans = appendSpan(spans, runes, pos, n)
			break
		}

		end := pos + s.chunkSize
		cut := s.findBreak(runes, pos, end)
		spans = appendSpan(spans, runes, pos, cut)

		// cut > pos+overlap always holds, so this makes progress
		pos = cut - s.chunkOverlap
	}

	return spans
}

// findBreak returns the rune index just after the best separator in
// (pos+overlap, end], or end for a hard cut.
func (s *RecursiveSplitter) findBreak(runes []rune, pos, end int) int {
	lo := pos + s.chunkOverlap + 1
	if lo >= end {
		return end
	}

	window := runes[lo:end]
	for _, sep := range s.separators {
		if idx := lastIndexRunes(window, sep); idx >= 0 {
			return lo + idx + len(sep)
		}
	}
	return end
}

func appendSpan(spans []Span, runes []rune, start, end int) []Span {
	text := string(runes[start:end])
	if strings.TrimSpace(text) == "" {
		return spans
	}
	return append(spans, Span{Text: text, Start: start, End: end})
}

func lastIndexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := len(haystack) - len(needle); i >= 0; i-- {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
