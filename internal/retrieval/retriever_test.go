package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func seedKnowledge(t *testing.T, stores *storage.StoreSet) {
	t.Helper()
	chunks := []*models.KnowledgeChunk{
		{ID: "a", FilePath: "deploy.md", Content: "how to deploy the gateway service", Embedding: []float32{1, 0, 0}, UpdatedAt: time.Now()},
		{ID: "b", FilePath: "billing.md", Content: "how invoices and billing cycles work", Embedding: []float32{0, 1, 0}, UpdatedAt: time.Now()},
		{ID: "c", FilePath: "deploy-notes.md", Content: "rollback procedure for a failed deploy", Embedding: []float32{0.9, 0.1, 0}, UpdatedAt: time.Now()},
	}
	for _, c := range chunks {
		require.NoError(t, stores.Knowledge.Upsert(context.Background(), c))
	}
}

func TestRetriever_VectorLegRanksClosestEmbeddingFirst(t *testing.T) {
	stores := storage.NewMemoryStoreSet()
	seedKnowledge(t, stores)

	embedder := &fakeEmbedder{vectors: map[string][]float32{"deploy": {1, 0, 0}}}
	r := NewRetriever(stores.Knowledge, embedder, 1.0) // vector-only

	results, err := r.Search(context.Background(), "deploy", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "a", results[0].Chunk.ID) // exact embedding match ranks first
}

func TestRetriever_KeywordLegFindsTextMatchWithoutEmbedder(t *testing.T) {
	stores := storage.NewMemoryStoreSet()
	seedKnowledge(t, stores)

	r := NewRetriever(stores.Knowledge, nil, 0.5)

	results, err := r.Search(context.Background(), "billing", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "b", results[0].Chunk.ID)
}

func TestRetriever_FusesBothLegsWhenBothMatch(t *testing.T) {
	stores := storage.NewMemoryStoreSet()
	seedKnowledge(t, stores)

	embedder := &fakeEmbedder{vectors: map[string][]float32{"deploy": {1, 0, 0}}}
	r := NewRetriever(stores.Knowledge, embedder, 0.5)

	results, err := r.Search(context.Background(), "deploy", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// "a" matches both the keyword leg (contains "deploy") and is the exact
	// embedding match, so it should fuse to the top rank over "c" (keyword
	// match only, weaker embedding match).
	require.Equal(t, "a", results[0].Chunk.ID)
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	require.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	require.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	require.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
