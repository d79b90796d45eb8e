package vector

import (
	"context"
	"math"
	"sort"
)

// Candidate is a scored hit from a vector index. Similarity is cosine
// similarity in [-1, 1]; Ordinal is the chunk's insertion position in the
// corpus, used as the stable tie-break when similarities are equal.
type Candidate struct {
	ChunkID    string
	Similarity float64
	Ordinal    int
}

// Index is a built, immutable snapshot of the embedded corpus. Implementations
// are safe for concurrent Search calls; rebuilds swap in a new Index.
type Index interface {
	// Search returns up to limit candidates ranked by similarity descending,
	// ties broken by insertion order.
	Search(ctx context.Context, query []float32, limit int) ([]Candidate, error)

	// Len returns the number of indexed vectors.
	Len() int
}

// normalize returns a unit-length copy of v. A zero vector is returned as-is.
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	out := make([]float32, len(v))
	copy(out, v)
	if sumSquares == 0 {
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// dot computes the dot product of two equal-length vectors. For unit vectors
// this is the cosine similarity.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// rankCandidates sorts by similarity descending with insertion-order
// tie-break, then truncates to limit.
func rankCandidates(cands []Candidate, limit int) []Candidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Similarity != cands[j].Similarity {
			return cands[i].Similarity > cands[j].Similarity
		}
		return cands[i].Ordinal < cands[j].Ordinal
	})
	if limit >= 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands
}
