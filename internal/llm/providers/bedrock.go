package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/pkg/models"
)

var bedrockPricing = map[string][2]float64{
	"anthropic.claude-3-5-sonnet": {3.0, 15.0},
	"anthropic.claude-3-haiku":    {0.25, 1.25},
	"amazon.titan":                {0.2, 0.6},
}

// NewBedrock builds an llm.Provider backed by AWS Bedrock's Converse API,
// which presents a single request/response shape across every model family
// Bedrock hosts instead of a per-model wire format.
func NewBedrock(client *bedrockruntime.Client, defaultModel string) llm.Provider {
	return llm.Provider{
		Name: "bedrock",
		Complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			model := req.Model
			if model == "" {
				model = defaultModel
			}

			input := &bedrockruntime.ConverseInput{
				ModelId:  aws.String(model),
				Messages: toBedrockMessages(req.Messages),
				InferenceConfig: &types.InferenceConfiguration{
					MaxTokens: aws.Int32(int32(maxTokensOrDefault(req.MaxTokens))),
				},
			}
			if req.System != "" {
				input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
			}
			for _, t := range req.Tools {
				var decoded map[string]any
				_ = json.Unmarshal(t.Schema, &decoded)
				input.ToolConfig = appendBedrockTool(input.ToolConfig, t.Name, t.Description, decoded)
			}

			out, err := client.Converse(ctx, input)
			if err != nil {
				return nil, fmt.Errorf("bedrock: %w", err)
			}
			return fromBedrockOutput(out, model), nil
		},
	}
}

func appendBedrockTool(cfg *types.ToolConfiguration, name, description string, schema map[string]any) *types.ToolConfiguration {
	if cfg == nil {
		cfg = &types.ToolConfiguration{}
	}
	cfg.Tools = append(cfg.Tools, &types.ToolMemberToolSpec{
		Value: types.ToolSpecification{
			Name:        aws.String(name),
			Description: aws.String(description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		},
	})
	return cfg
}

func toBedrockMessages(msgs []llm.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		var content []types.ContentBlock
		if m.Role == "tool" {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(m.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Content}},
				},
			})
		} else if m.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: m.Content})
		}
		if len(content) == 0 {
			continue
		}
		out = append(out, types.Message{Role: role, Content: content})
	}
	return out
}

func fromBedrockOutput(out *bedrockruntime.ConverseOutput, model string) *llm.CompletionResponse {
	resp := &llm.CompletionResponse{
		FinishReason: string(out.StopReason),
	}
	if out.Usage != nil {
		resp.InTokens = int(aws.ToInt32(out.Usage.InputTokens))
		resp.OutTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	if msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			switch b := block.(type) {
			case *types.ContentBlockMemberText:
				resp.Text += b.Value
			case *types.ContentBlockMemberToolUse:
				var decoded map[string]any
				_ = b.Value.Input.UnmarshalSmithyDocument(&decoded)
				raw, _ := json.Marshal(decoded)
				resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
					ID:    aws.ToString(b.Value.ToolUseId),
					Name:  aws.ToString(b.Value.Name),
					Input: raw,
				})
			}
		}
	}
	resp.CostUSD = estimateCost(bedrockPricing, model, resp.InTokens, resp.OutTokens)
	return resp
}
