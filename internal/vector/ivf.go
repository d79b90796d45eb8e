package vector

import (
	"context"
	"math"
	"math/rand"

	"github.com/Aman-CERP/askdocs/internal/store"
)

const (
	ivfMinLists        = 10
	ivfMaxLists        = 100
	ivfDefaultNProbe   = 10
	ivfTrainIterations = 10
	ivfSeed            = 1 // deterministic builds for reproducible ranking
)

// IVFIndex partitions the corpus into inverted lists around k-means
// centroids and probes only the nearest lists at query time. Recall is
// traded for speed on medium corpora.
type IVFIndex struct {
	centroids [][]float32
	lists     [][]int // centroid -> member positions in insertion order

	ids     []string
	vectors [][]float32 // unit-normalized, insertion order

	nprobe int
}

var _ Index = (*IVFIndex)(nil)

// ivfListCount sizes the number of inverted lists as sqrt(n), clamped to
// [10, 100].
func ivfListCount(n int) int {
	lists := int(math.Sqrt(float64(n)))
	if lists < ivfMinLists {
		lists = ivfMinLists
	}
	if lists > ivfMaxLists {
		lists = ivfMaxLists
	}
	if lists > n {
		lists = n
	}
	return lists
}

// NewIVFIndex trains centroids over the corpus and assigns every vector to
// its nearest list. refs must be in insertion order.
func NewIVFIndex(refs []store.EmbeddingRef) *IVFIndex {
	idx := &IVFIndex{
		ids:     make([]string, len(refs)),
		vectors: make([][]float32, len(refs)),
		nprobe:  ivfDefaultNProbe,
	}
	for i, ref := range refs {
		idx.ids[i] = ref.ChunkID
		idx.vectors[i] = normalize(ref.Vector)
	}

	if len(refs) == 0 {
		return idx
	}

	k := ivfListCount(len(refs))
	idx.centroids = trainCentroids(idx.vectors, k)
	if idx.nprobe > len(idx.centroids) {
		idx.nprobe = len(idx.centroids)
	}

	idx.lists = make([][]int, len(idx.centroids))
	for i, vec := range idx.vectors {
		c := nearestCentroid(vec, idx.centroids)
		idx.lists[c] = append(idx.lists[c], i)
	}

	return idx
}

func (idx *IVFIndex) Len() int {
	return len(idx.ids)
}

func (idx *IVFIndex) Search(ctx context.Context, query []float32, limit int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(idx.ids) == 0 {
		return []Candidate{}, nil
	}

	q := normalize(query)

	// Rank centroids by similarity and probe the closest nprobe lists.
	type centroidDist struct {
		idx int
		sim float64
	}
	order := make([]centroidDist, len(idx.centroids))
	for i, c := range idx.centroids {
		order[i] = centroidDist{idx: i, sim: dot(q, c)}
	}
	for i := 0; i < idx.nprobe; i++ {
		best := i
		for j := i + 1; j < len(order); j++ {
			if order[j].sim > order[best].sim {
				best = j
			}
		}
		order[i], order[best] = order[best], order[i]
	}

	var cands []Candidate
	for i := 0; i < idx.nprobe; i++ {
		for _, pos := range idx.lists[order[i].idx] {
			cands = append(cands, Candidate{
				ChunkID:    idx.ids[pos],
				Similarity: dot(q, idx.vectors[pos]),
				Ordinal:    pos,
			})
		}
	}

	return rankCandidates(cands, limit), nil
}

// trainCentroids runs a fixed number of k-means iterations with a seeded
// RNG so the same corpus always yields the same lists.
func trainCentroids(vectors [][]float32, k int) [][]float32 {
	rng := rand.New(rand.NewSource(ivfSeed))
	dim := len(vectors[0])

	// Initialize from a random sample of the corpus
	perm := rng.Perm(len(vectors))
	centroids := make([][]float32, k)
	for i := 0; i < k; i++ {
		c := make([]float32, dim)
		copy(c, vectors[perm[i]])
		centroids[i] = c
	}

	assignment := make([]int, len(vectors))
	for iter := 0; iter < ivfTrainIterations; iter++ {
		changed := false
		for i, vec := range vectors {
			c := nearestCentroid(vec, centroids)
			if assignment[i] != c {
				assignment[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids as member means
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, vec := range vectors {
			c := assignment[i]
			counts[c]++
			for d, v := range vec {
				sums[c][d] += float64(v)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster: reseed from a random vector
				copy(centroids[c], vectors[rng.Intn(len(vectors))])
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
			centroids[c] = normalize(centroids[c])
		}
	}

	return centroids
}

func nearestCentroid(vec []float32, centroids [][]float32) int {
	best := 0
	bestSim := math.Inf(-1)
	for i, c := range centroids {
		if sim := dot(vec, c); sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	return best
}
