package vector

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
	"github.com/Aman-CERP/askdocs/internal/store"
)

func newTestExecutor(refs []store.EmbeddingRef) (*Executor, *countingStore) {
	cs := &countingStore{count: len(refs), refs: refs}
	sel := NewSelector(cs, DefaultTierThresholds())
	return NewExecutor(cs, sel, 100), cs
}

func TestExecutor_CandidateLimit(t *testing.T) {
	exec, _ := newTestExecutor(nil)

	assert.Equal(t, 100, exec.CandidateLimit(1))  // floor
	assert.Equal(t, 100, exec.CandidateLimit(5))  // 5*20 == floor
	assert.Equal(t, 200, exec.CandidateLimit(10)) // 10*20
}

func TestExecutor_EmptyCorpusReturnsIndexUnavailable(t *testing.T) {
	exec, _ := newTestExecutor(nil)

	_, err := exec.Search(context.Background(), []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, askerrors.ErrIndexUnavailable)
}

func TestExecutor_SearchRanksBySimilarity(t *testing.T) {
	exec, _ := newTestExecutor([]store.EmbeddingRef{
		{ChunkID: "A", Vector: []float32{1, 0, 0}},
		{ChunkID: "B", Vector: []float32{0, 1, 0}},
		{ChunkID: "C", Vector: []float32{0.9, 0.1, 0}},
	})

	cands, err := exec.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, "A", cands[0].ChunkID)
	assert.Equal(t, "C", cands[1].ChunkID)
	assert.Equal(t, "B", cands[2].ChunkID)
}

func TestExecutor_ReusesIndexAcrossSearches(t *testing.T) {
	exec, cs := newTestExecutor([]store.EmbeddingRef{
		{ChunkID: "A", Vector: []float32{1, 0, 0}},
	})

	_, err := exec.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	_, err = exec.Search(context.Background(), []float32{0, 1, 0}, 5)
	require.NoError(t, err)

	// One count for the cached tier decision; embeddings loaded once.
	assert.Equal(t, 1, cs.countCalls)
}

func TestExecutor_InvalidateRebuilds(t *testing.T) {
	cs := &countingStore{count: 1, refs: []store.EmbeddingRef{
		{ChunkID: "A", Vector: []float32{1, 0, 0}},
	}}
	sel := NewSelector(cs, DefaultTierThresholds())
	exec := NewExecutor(cs, sel, 100)

	_, err := exec.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)

	// Corpus grows; executor must pick it up after Invalidate
	cs.count = 2
	cs.refs = append(cs.refs, store.EmbeddingRef{ChunkID: "B", Vector: []float32{0, 1, 0}})
	exec.Invalidate()

	cands, err := exec.Search(context.Background(), []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "B", cands[0].ChunkID)
}

func TestExecutor_ConcurrentSearches(t *testing.T) {
	refs := refsFromVectors(randomUnitVectors(500, 8, 11))
	exec, cs := newTestExecutor(refs)

	// Build once up front so every goroutine takes the shared-snapshot path.
	require.NoError(t, exec.Rebuild(context.Background()))

	query := refs[123].Vector
	var wg sync.WaitGroup
	errs := make([]error, 16)
	tops := make([]string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				cands, err := exec.Search(context.Background(), query, 5)
				if err != nil {
					errs[i] = err
					return
				}
				tops[i] = cands[0].ChunkID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "chunk-123", tops[i])
	}

	// The snapshot was shared: embeddings were loaded exactly once.
	assert.Equal(t, 1, cs.embeddingCalls)
}

func TestExecutor_TierReported(t *testing.T) {
	exec, _ := newTestExecutor([]store.EmbeddingRef{
		{ChunkID: "A", Vector: []float32{1, 0, 0}},
	})

	assert.Equal(t, TierExact, exec.Tier(context.Background()))
}

func TestExecutor_RebuildEager(t *testing.T) {
	exec, _ := newTestExecutor([]store.EmbeddingRef{
		{ChunkID: "A", Vector: []float32{1, 0, 0}},
	})

	require.NoError(t, exec.Rebuild(context.Background()))

	cands, err := exec.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestExecutor_RebuildEmptyCorpus(t *testing.T) {
	exec, _ := newTestExecutor(nil)

	err := exec.Rebuild(context.Background())
	assert.ErrorIs(t, err, askerrors.ErrIndexUnavailable)
}
