package vector

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/askdocs/internal/store"
)

const (
	hnswM        = 16
	hnswEfSearch = 64

	// hnswSeed fixes the level RNG so repeated builds over the same corpus
	// produce the same graph and therefore the same ranking.
	hnswSeed = 1
)

// HNSWIndex wraps coder/hnsw for large corpora. Chunk IDs are mapped to
// uint64 keys equal to their insertion ordinal, which keeps the tie-break
// ordinal recoverable from a graph hit.
type HNSWIndex struct {
	graph  *hnsw.Graph[uint64]
	keyMap map[uint64]string // ordinal key -> chunk ID
	count  int
}

var _ Index = (*HNSWIndex)(nil)

// NewHNSWIndex builds a navigable small-world graph over the corpus
// embeddings. refs must be in insertion order.
func NewHNSWIndex(refs []store.EmbeddingRef) (*HNSWIndex, error) {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = hnswM
	graph.EfSearch = hnswEfSearch
	graph.Ml = 0.25
	graph.Rng = rand.New(rand.NewSource(hnswSeed))

	idx := &HNSWIndex{
		graph:  graph,
		keyMap: make(map[uint64]string, len(refs)),
	}

	for i, ref := range refs {
		key := uint64(i)
		graph.Add(hnsw.MakeNode(key, normalize(ref.Vector)))
		idx.keyMap[key] = ref.ChunkID
		idx.count++
	}

	return idx, nil
}

func (idx *HNSWIndex) Len() int {
	return idx.count
}

func (idx *HNSWIndex) Search(ctx context.Context, query []float32, limit int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx.count == 0 {
		return []Candidate{}, nil
	}

	q := normalize(query)
	nodes := idx.graph.Search(q, limit)

	cands := make([]Candidate, 0, len(nodes))
	for _, node := range nodes {
		id, ok := idx.keyMap[node.Key]
		if !ok {
			return nil, fmt.Errorf("hnsw graph returned unknown key %d", node.Key)
		}
		cands = append(cands, Candidate{
			ChunkID:    id,
			Similarity: dot(q, node.Value),
			Ordinal:    int(node.Key),
		})
	}

	return rankCandidates(cands, limit), nil
}
