package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder(384)
	defer e.Close()

	a, err := e.Embed(context.Background(), "how do I deploy the payments service")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "how do I deploy the payments service")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 384)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder(64)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "some documentation text")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(16)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), vec)
}

func TestStaticEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewStaticEmbedder(384)
	defer e.Close()

	ctx := context.Background()
	base, _ := e.Embed(ctx, "deploy the payments service")
	near, _ := e.Embed(ctx, "deploying the payments services")
	far, _ := e.Embed(ctx, "quarterly marketing budget review")

	cos := func(a, b []float32) float64 {
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return sum
	}

	assert.Greater(t, cos(base, near), cos(base, far))
}

func TestStaticEmbedder_BatchPreservesOrder(t *testing.T) {
	e := NewStaticEmbedder(32)
	defer e.Close()

	texts := []string{"first", "second", "third"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, vecs[i])
	}
}

func TestStaticEmbedder_ClosedErrors(t *testing.T) {
	e := NewStaticEmbedder(16)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func newOllamaTestServer(t *testing.T, dims int, fail bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "/api/embed", r.URL.Path)

		resp := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[i%dims] = 1
			resp.Embeddings[i] = vec
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := newOllamaTestServer(t, 4, false)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), Config{
		Host: srv.URL, Model: "all-minilm", Dimension: 4, BatchSize: 2,
	})
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 4)
	}
}

func TestOllamaEmbedder_DimensionMismatchRejected(t *testing.T) {
	srv := newOllamaTestServer(t, 8, false)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), Config{
		Host: srv.URL, Model: "all-minilm", Dimension: 4,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestOllamaEmbedder_ServerErrorIsEmbeddingFailure(t *testing.T) {
	srv := newOllamaTestServer(t, 4, true)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), Config{
		Host: srv.URL, Model: "all-minilm", Dimension: 4,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, askerrors.ErrCodeEmbeddingFailed, askerrors.GetCode(err))
}

func TestOllamaEmbedder_UnreachableHost(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), Config{
		Host: "http://127.0.0.1:1", Model: "all-minilm", Dimension: 4,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, askerrors.ErrCodeEmbeddingFailed, askerrors.GetCode(err))
}

func TestNew_ProviderSelection(t *testing.T) {
	e, err := New(context.Background(), Config{Provider: "static", Dimension: 16})
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimensions())
	_ = e.Close()

	_, err = New(context.Background(), Config{Provider: "openai"})
	assert.Error(t, err)
}
