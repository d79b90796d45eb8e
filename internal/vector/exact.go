package vector

import (
	"context"

	"github.com/Aman-CERP/askdocs/internal/store"
)

// ExactIndex scores every vector in the corpus against the query. Always
// correct; used for corpora small enough that brute force stays fast.
type ExactIndex struct {
	ids     []string
	vectors [][]float32 // unit-normalized, insertion order
}

var _ Index = (*ExactIndex)(nil)

// NewExactIndex builds a brute-force index from the corpus embeddings.
// refs must be in insertion order; their position becomes the tie-break
// ordinal.
func NewExactIndex(refs []store.EmbeddingRef) *ExactIndex {
	idx := &ExactIndex{
		ids:     make([]string, len(refs)),
		vectors: make([][]float32, len(refs)),
	}
	for i, ref := range refs {
		idx.ids[i] = ref.ChunkID
		idx.vectors[i] = normalize(ref.Vector)
	}
	return idx
}

func (idx *ExactIndex) Len() int {
	return len(idx.ids)
}

func (idx *ExactIndex) Search(ctx context.Context, query []float32, limit int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := normalize(query)
	cands := make([]Candidate, len(idx.ids))
	for i := range idx.ids {
		cands[i] = Candidate{
			ChunkID:    idx.ids[i],
			Similarity: dot(q, idx.vectors[i]),
			Ordinal:    i,
		}
	}
	return rankCandidates(cands, limit), nil
}
