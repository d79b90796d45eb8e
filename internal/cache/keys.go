package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key prefixes keep result and embedding entries in disjoint namespaces, so
// flushing results on a corpus change leaves embeddings intact (the query
// text's vector does not depend on the corpus).
const (
	KeyPrefix       = "askdocs:"
	ResultPrefix    = KeyPrefix + "result:"
	EmbeddingPrefix = KeyPrefix + "embedding:"
)

// NormalizeQuery canonicalizes a query for cache keying: surrounding
// whitespace stripped, case folded. Interior whitespace is preserved; it is
// significant to the embedding model.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// ResultKey derives the cache key for a retrieval result set. Every
// parameter that changes the result participates, including the index tier:
// a tier transition mid-TTL must not serve results ranked by the old index.
func ResultKey(query string, topK int, threshold float64, tier string) string {
	payload := fmt.Sprintf("%s|%d|%.6f|%s", NormalizeQuery(query), topK, threshold, tier)
	sum := sha256.Sum256([]byte(payload))
	return ResultPrefix + hex.EncodeToString(sum[:])
}

// EmbeddingKey derives the cache key for a query embedding. Only the
// normalized query participates: the embedding is independent of topK,
// threshold, and tier.
func EmbeddingKey(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return EmbeddingPrefix + hex.EncodeToString(sum[:])
}
