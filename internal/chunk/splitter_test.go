package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter_ShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)

	chunks := s.Split("a short paragraph")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph", chunks[0])
}

func TestSplitter_EmptyTextNoChunks(t *testing.T) {
	s := NewSplitter(1000, 200)

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\n  "))
}

func TestSplitter_PrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(100, 0)

	para1 := strings.Repeat("alpha ", 12) // ~72 chars
	para2 := strings.Repeat("beta ", 12)  // ~60 chars
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[0], "alpha"))
	assert.True(t, strings.HasPrefix(chunks[1], "beta"))
}

func TestSplitter_RespectsMaxSize(t *testing.T) {
	s := NewSplitter(100, 20)

	text := strings.Repeat("lorem ipsum dolor sit amet ", 100)
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		// Overlap may extend a chunk by up to the overlap length
		assert.LessOrEqual(t, len(c), 100+20+1)
	}
}

func TestSplitter_OverlapSharesContext(t *testing.T) {
	s := NewSplitter(50, 20)

	text := strings.Repeat("word ", 40) // 200 chars of words
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	// Each successor starts with text present near the end of its
	// predecessor.
	for i := 1; i < len(chunks); i++ {
		head := chunks[i]
		if len(head) > 10 {
			head = head[:10]
		}
		assert.Contains(t, chunks[i-1], strings.TrimSpace(head))
	}
}

func TestSplitter_UnbrokenTextWindows(t *testing.T) {
	s := NewSplitter(100, 20)

	text := strings.Repeat("x", 350) // no separators at all
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
	}

	// Windows step by size-overlap, so all input is covered
	joined := strings.Join(chunks, "")
	assert.GreaterOrEqual(t, len(joined), 350)
}

func TestSplitter_DefaultsApplied(t *testing.T) {
	s := NewSplitter(0, -1)
	assert.Equal(t, DefaultChunkSize, s.size)
	assert.Equal(t, DefaultChunkOverlap, s.overlap)

	// Overlap >= size is clamped
	s = NewSplitter(100, 100)
	assert.Equal(t, 50, s.overlap)
}
