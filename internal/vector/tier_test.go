package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/askdocs/internal/store"
)

func TestSelectTier(t *testing.T) {
	thresholds := DefaultTierThresholds()

	tests := []struct {
		count int
		want  Tier
	}{
		{0, TierExact},
		{1, TierExact},
		{999, TierExact},
		{1000, TierIVF},
		{5000, TierIVF},
		{9999, TierIVF},
		{10000, TierHNSW},
		{250000, TierHNSW},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("count_%d", tt.count), func(t *testing.T) {
			assert.Equal(t, tt.want, SelectTier(tt.count, thresholds))
		})
	}
}

// countingStore stubs ChunkStore, tracking Count and AllEmbeddings calls.
type countingStore struct {
	store.ChunkStore
	count          int
	countErr       error
	countCalls     int
	embeddingCalls int
	refs           []store.EmbeddingRef
}

func (c *countingStore) Count(ctx context.Context) (int, error) {
	c.countCalls++
	return c.count, c.countErr
}

func (c *countingStore) AllEmbeddings(ctx context.Context) ([]store.EmbeddingRef, error) {
	c.embeddingCalls++
	return c.refs, nil
}

func TestSelector_CachesDecision(t *testing.T) {
	cs := &countingStore{count: 500}
	sel := NewSelector(cs, DefaultTierThresholds())

	tier, n := sel.Select(context.Background())
	assert.Equal(t, TierExact, tier)
	assert.Equal(t, 500, n)

	sel.Select(context.Background())
	sel.Select(context.Background())
	assert.Equal(t, 1, cs.countCalls)
}

func TestSelector_InvalidateRecounts(t *testing.T) {
	cs := &countingStore{count: 500}
	sel := NewSelector(cs, DefaultTierThresholds())

	tier, _ := sel.Select(context.Background())
	assert.Equal(t, TierExact, tier)

	cs.count = 2000
	sel.Invalidate()

	tier, n := sel.Select(context.Background())
	assert.Equal(t, TierIVF, tier)
	assert.Equal(t, 2000, n)
	assert.Equal(t, 2, cs.countCalls)
}

func TestSelector_CountErrorFallsBackToExact(t *testing.T) {
	cs := &countingStore{countErr: fmt.Errorf("db locked")}
	sel := NewSelector(cs, DefaultTierThresholds())

	tier, n := sel.Select(context.Background())
	assert.Equal(t, TierExact, tier)
	assert.Equal(t, 0, n)

	// Errors are not cached; next call retries
	sel.Select(context.Background())
	assert.Equal(t, 2, cs.countCalls)
}
