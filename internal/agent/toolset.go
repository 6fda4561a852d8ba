package agent

import (
	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/tools"
)

// toLLMTools reshapes the registry's Tool Contract entries into the
// provider-agnostic llm.ToolDef shape the router hands to each adapter.
func toLLMTools(ts []tools.Tool) []llm.ToolDef {
	out := make([]llm.ToolDef, 0, len(ts))
	for _, t := range ts {
		out = append(out, llm.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			Schema:      []byte(t.Schema),
		})
	}
	return out
}
