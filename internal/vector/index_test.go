package vector

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/askdocs/internal/store"
)

func refsFromVectors(vecs [][]float32) []store.EmbeddingRef {
	refs := make([]store.EmbeddingRef, len(vecs))
	for i, v := range vecs {
		refs[i] = store.EmbeddingRef{ChunkID: fmt.Sprintf("chunk-%d", i), Vector: v}
	}
	return refs
}

func TestExactIndex_CosineRanking(t *testing.T) {
	// A matches the query exactly, C points nearly the same way, B is
	// orthogonal.
	refs := []store.EmbeddingRef{
		{ChunkID: "A", Vector: []float32{1, 0, 0}},
		{ChunkID: "B", Vector: []float32{0, 1, 0}},
		{ChunkID: "C", Vector: []float32{0.9, 0.1, 0}},
	}
	idx := NewExactIndex(refs)

	cands, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, cands, 3)

	assert.Equal(t, "A", cands[0].ChunkID)
	assert.InDelta(t, 1.0, cands[0].Similarity, 1e-6)

	assert.Equal(t, "C", cands[1].ChunkID)
	assert.InDelta(t, 0.9/math.Sqrt(0.81+0.01), cands[1].Similarity, 1e-4)

	assert.Equal(t, "B", cands[2].ChunkID)
	assert.InDelta(t, 0.0, cands[2].Similarity, 1e-6)
}

func TestExactIndex_TieBreakByInsertionOrder(t *testing.T) {
	// Identical vectors tie exactly; earlier insertion wins.
	refs := []store.EmbeddingRef{
		{ChunkID: "second", Vector: []float32{0, 1, 0}},
		{ChunkID: "dup-1", Vector: []float32{1, 0, 0}},
		{ChunkID: "dup-2", Vector: []float32{1, 0, 0}},
		{ChunkID: "dup-3", Vector: []float32{2, 0, 0}}, // same direction
	}
	idx := NewExactIndex(refs)

	cands, err := idx.Search(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, "dup-1", cands[0].ChunkID)
	assert.Equal(t, "dup-2", cands[1].ChunkID)
	assert.Equal(t, "dup-3", cands[2].ChunkID)
}

func TestExactIndex_LimitTruncates(t *testing.T) {
	refs := refsFromVectors([][]float32{{1, 0}, {0, 1}, {0.5, 0.5}})
	idx := NewExactIndex(refs)

	cands, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestExactIndex_ZeroVectorQueryDoesNotPanic(t *testing.T) {
	refs := refsFromVectors([][]float32{{1, 0}, {0, 1}})
	idx := NewExactIndex(refs)

	cands, err := idx.Search(context.Background(), []float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, cands, 2)
	for _, c := range cands {
		assert.Equal(t, 0.0, c.Similarity)
	}
}

// randomUnitVectors generates clustered random vectors so approximate
// indexes have realistic structure to exploit.
func randomUnitVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(rng.NormFloat64())
		}
		vecs[i] = normalize(v)
	}
	return vecs
}

func TestIVFIndex_FindsNearestNeighbor(t *testing.T) {
	vecs := randomUnitVectors(2000, 16, 42)
	refs := refsFromVectors(vecs)
	idx := NewIVFIndex(refs)

	assert.Equal(t, 2000, idx.Len())

	// Query with an exact corpus member: it lands in its own list, so the
	// probe must find it with similarity ~1.
	query := vecs[137]
	cands, err := idx.Search(context.Background(), query, 10)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.Equal(t, "chunk-137", cands[0].ChunkID)
	assert.InDelta(t, 1.0, cands[0].Similarity, 1e-5)
}

func TestIVFIndex_ListCountClamped(t *testing.T) {
	assert.Equal(t, 10, ivfListCount(50))    // sqrt(50)≈7, clamped up
	assert.Equal(t, 31, ivfListCount(1000))  // sqrt(1000)≈31
	assert.Equal(t, 100, ivfListCount(50000)) // sqrt(50000)≈223, clamped down
	assert.Equal(t, 5, ivfListCount(5))      // never more lists than vectors
}

func TestIVFIndex_Deterministic(t *testing.T) {
	vecs := randomUnitVectors(1200, 8, 7)
	refs := refsFromVectors(vecs)

	a := NewIVFIndex(refs)
	b := NewIVFIndex(refs)

	query := normalize([]float32{1, 1, 0, 0, 0, 0, 0, 0})
	resA, err := a.Search(context.Background(), query, 25)
	require.NoError(t, err)
	resB, err := b.Search(context.Background(), query, 25)
	require.NoError(t, err)
	assert.Equal(t, resA, resB)
}

func TestIVFIndex_Empty(t *testing.T) {
	idx := NewIVFIndex(nil)
	cands, err := idx.Search(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestHNSWIndex_FindsNearestNeighbor(t *testing.T) {
	vecs := randomUnitVectors(500, 16, 99)
	refs := refsFromVectors(vecs)
	idx, err := NewHNSWIndex(refs)
	require.NoError(t, err)

	assert.Equal(t, 500, idx.Len())

	query := vecs[42]
	cands, err := idx.Search(context.Background(), query, 10)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.Equal(t, "chunk-42", cands[0].ChunkID)
	assert.InDelta(t, 1.0, cands[0].Similarity, 1e-5)
}

func TestHNSWIndex_Deterministic(t *testing.T) {
	vecs := randomUnitVectors(800, 16, 5)
	refs := refsFromVectors(vecs)

	// The level RNG is seeded, so two builds over the same corpus must
	// produce identical graphs and identical rankings.
	a, err := NewHNSWIndex(refs)
	require.NoError(t, err)
	b, err := NewHNSWIndex(refs)
	require.NoError(t, err)

	query := vecs[301]
	resA, err := a.Search(context.Background(), query, 25)
	require.NoError(t, err)
	resB, err := b.Search(context.Background(), query, 25)
	require.NoError(t, err)

	assert.Equal(t, resA, resB)
	require.NotEmpty(t, resA)
	assert.Equal(t, "chunk-301", resA[0].ChunkID)
}

func TestHNSWIndex_Empty(t *testing.T) {
	idx, err := NewHNSWIndex(nil)
	require.NoError(t, err)

	cands, err := idx.Search(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSearch_CancelledContext(t *testing.T) {
	refs := refsFromVectors([][]float32{{1, 0}})
	idx := NewExactIndex(refs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Search(ctx, []float32{1, 0}, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
