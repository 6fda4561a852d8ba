package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentcore/internal/retrieval"
	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

// knowledgeHit is one ranked knowledge-search result, shaped for JSON
// serialization back to the model.
type knowledgeHit struct {
	FilePath    string  `json:"file_path"`
	HeadingPath string  `json:"heading_path"`
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
	// SuspectedInjection flags a chunk whose content matched a classic
	// prompt-injection override string (spec §4.6). The pipeline downgrades
	// or refuses any action proposed in a round fed a flagged chunk.
	SuspectedInjection bool `json:"suspected_injection,omitempty"`
}

// KnowledgeSearch returns a "knowledge_search" tool over the hybrid
// retriever (spec.md §4.5). Visible at trusted tier and above since reading
// indexed knowledge is not itself a mutating action.
func KnowledgeSearch(retriever *retrieval.Retriever) tools.Tool {
	return tools.Tool{
		Name:                  "knowledge_search",
		Description:           "Search the indexed skill/knowledge base by semantic similarity and keyword match.",
		PermissionLevel:       models.PermissionSafe,
		AuthorityTierRequired: models.TierTrusted,
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string"},
				"top_k": {"type": "integer", "minimum": 1, "maximum": 50}
			},
			"required": ["query"],
			"additionalProperties": false
		}`),
		Execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			var input struct {
				Query string `json:"query"`
				TopK  int    `json:"top_k"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
			}
			if strings.TrimSpace(input.Query) == "" {
				return errResult("query is required"), nil
			}
			results, err := retriever.Search(ctx, input.Query, input.TopK)
			if err != nil {
				return errResult(fmt.Sprintf("knowledge search: %v", err)), nil
			}
			hits := make([]knowledgeHit, len(results))
			for i, r := range results {
				flagged := security.DetectInjection(r.Chunk.Content)
				content := r.Chunk.Content
				if flagged {
					content = security.WrapExternalContent(r.Chunk.FilePath, content)
				}
				hits[i] = knowledgeHit{
					FilePath:           r.Chunk.FilePath,
					HeadingPath:        r.Chunk.HeadingPath,
					Content:            content,
					Score:              r.Score,
					SuspectedInjection: flagged,
				}
			}
			payload, _ := json.Marshal(map[string]any{"results": hits})
			return &tools.Result{Content: string(payload)}, nil
		},
	}
}
