// Package chunk splits extracted document text into bounded, overlapping
// spans for embedding and indexing.
package chunk

import (
	"strings"
)

const (
	// DefaultChunkSize matches the production chunker.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap keeps neighboring chunks sharing context so a
	// sentence cut at a boundary is still retrievable from both sides.
	DefaultChunkOverlap = 200
)

// separators are tried in order: paragraph breaks first, then lines, then
// words, finally raw characters.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter performs recursive character splitting.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a splitter with the given chunk size and overlap in
// characters. Non-positive values fall back to defaults; overlap is clamped
// below size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split breaks text into chunks of at most the configured size, preferring
// natural boundaries. Whitespace-only pieces are dropped.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := s.split(text, 0)

	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Splitter) split(text string, sepIdx int) []string {
	if len(text) <= s.size {
		return []string{text}
	}

	sep := separators[sepIdx]
	if sep == "" {
		return s.window(text)
	}

	parts := strings.Split(text, sep)

	// Merge parts into chunks up to size; recurse on oversized parts with
	// the next finer separator.
	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, part := range parts {
		if len(part) > s.size {
			flush()
			chunks = append(chunks, s.split(part, sepIdx+1)...)
			continue
		}

		extra := len(part)
		if current.Len() > 0 {
			extra += len(sep)
		}
		if current.Len()+extra > s.size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	flush()

	return s.applyOverlap(chunks, sep)
}

// window slices text into fixed-size pieces stepping by size-overlap.
func (s *Splitter) window(text string) []string {
	step := s.size - s.overlap
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + s.size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

// applyOverlap prepends the tail of each chunk to its successor so adjacent
// chunks share up to overlap characters of context.
func (s *Splitter) applyOverlap(chunks []string, sep string) []string {
	if s.overlap == 0 || len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := overlapTail(prev, s.overlap)
		if tail != "" && len(tail)+len(sep)+len(chunks[i]) <= s.size+s.overlap {
			out[i] = tail + sep + chunks[i]
		} else {
			out[i] = chunks[i]
		}
	}
	return out
}

// overlapTail returns the last ~n characters of text, aligned to a word
// boundary where possible.
func overlapTail(text string, n int) string {
	if len(text) <= n {
		return text
	}
	tail := text[len(text)-n:]
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx+1 < len(tail) {
		return tail[idx+1:]
	}
	return tail
}
