package retrieval

import (
	"context"
	"sort"

	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

// rrfK is the reciprocal-rank-fusion smoothing constant: a standard choice
// (Cormack et al.) that keeps low ranks from dominating the fused score.
const rrfK = 60.0

// Result is one ranked hit from a hybrid search.
type Result struct {
	Chunk *models.KnowledgeChunk
	Score float64
}

// Retriever answers hybrid knowledge queries: semantic similarity over the
// embedding column composed with FTS5 keyword match over the parent table
// (spec.md §4.5), fused by reciprocal rank with a configurable weight.
type Retriever struct {
	knowledge storage.KnowledgeStore
	embedder  Embedder
	weight    float64 // vector leg weight; keyword leg gets 1-weight
}

// NewRetriever builds a Retriever. weight is clamped to [0,1]; 0 is
// keyword-only, 1 is vector-only.
func NewRetriever(knowledge storage.KnowledgeStore, embedder Embedder, weight float64) *Retriever {
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	return &Retriever{knowledge: knowledge, embedder: embedder, weight: weight}
}

// Search runs both legs and returns the top-k fused results. If the
// embedder is nil or fails, the retriever degrades to keyword-only search
// rather than failing the whole query — knowledge lookup is an advisory
// context aid, not a step the turn should abort over.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 8
	}

	keywordHits, err := r.knowledge.SearchKeyword(ctx, query, topK*3)
	if err != nil {
		return nil, err
	}
	keywordRank := make(map[string]int, len(keywordHits))
	byID := make(map[string]*models.KnowledgeChunk, len(keywordHits))
	for i, c := range keywordHits {
		keywordRank[c.ID] = i + 1
		byID[c.ID] = c
	}

	vectorRank := map[string]int{}
	if r.embedder != nil && query != "" {
		if vecs, err := r.embedder.Embed(ctx, []string{query}); err == nil && len(vecs) == 1 && len(vecs[0]) > 0 {
			all, err := r.knowledge.All(ctx)
			if err == nil {
				type scored struct {
					chunk *models.KnowledgeChunk
					sim   float64
				}
				var ranked []scored
				for _, c := range all {
					if len(c.Embedding) == 0 {
						continue
					}
					ranked = append(ranked, scored{chunk: c, sim: cosineSimilarity(vecs[0], c.Embedding)})
				}
				sort.Slice(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
				for i, s := range ranked {
					vectorRank[s.chunk.ID] = i + 1
					if _, ok := byID[s.chunk.ID]; !ok {
						byID[s.chunk.ID] = s.chunk
					}
				}
			}
		}
	}

	fused := make([]Result, 0, len(byID))
	for id, chunk := range byID {
		var score float64
		if rank, ok := keywordRank[id]; ok {
			score += (1 - r.weight) / (rrfK + float64(rank))
		}
		if rank, ok := vectorRank[id]; ok {
			score += r.weight / (rrfK + float64(rank))
		}
		fused = append(fused, Result{Chunk: chunk, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Chunk.ID < fused[j].Chunk.ID // deterministic tiebreak
	})
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}
