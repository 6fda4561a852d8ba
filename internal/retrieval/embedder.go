// Package retrieval implements the hybrid knowledge retriever (spec.md
// §4.5 "Vector side-index"): cosine-similarity ranking over the BLOB
// embedding column, combined with a SQLite FTS5 keyword match, interleaved
// at a configurable weight.
package retrieval

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into vectors for the similarity leg of a hybrid
// search. Kept as a narrow interface (rather than depending on llm.Router,
// whose Provider shape is chat-completion only) so the knowledge indexer
// and the retriever can share one embedding client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// openAIEmbedder calls an OpenAI-compatible /embeddings endpoint, the same
// client the chat providers use (internal/llm/providers), just pointed at
// its embeddings method instead of chat completions.
type openAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder builds an Embedder against baseURL (empty uses the
// default OpenAI API) using apiKey and model.
func NewOpenAIEmbedder(apiKey, baseURL, model string) Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &openAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("retrieval: embeddings provider returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}
