package retrieval

import "math"

// cosineSimilarity scores two embedding vectors in [-1,1]; mismatched or
// empty vectors score 0 rather than erroring, since a chunk embedded with a
// stale model dimension should simply rank last, not abort the search.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
