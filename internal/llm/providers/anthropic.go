// Package providers implements concrete llm.Provider backends: Anthropic,
// OpenAI and AWS Bedrock.
package providers

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/pkg/models"
)

// pricePerMToken is a rough, model-keyed $/million-token table used only for
// cost accounting; it is not billing-accurate.
var anthropicPricing = map[string][2]float64{
	"claude-opus-4":   {15.0, 75.0},
	"claude-sonnet-4": {3.0, 15.0},
	"claude-haiku":    {0.8, 4.0},
}

// NewAnthropic builds an llm.Provider backed by the Anthropic Messages API.
func NewAnthropic(apiKey, defaultModel string) llm.Provider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return llm.Provider{
		Name: "anthropic",
		Complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			model := req.Model
			if model == "" {
				model = defaultModel
			}
			params := anthropic.MessageNewParams{
				Model:     anthropic.Model(model),
				MaxTokens: int64(maxTokensOrDefault(req.MaxTokens)),
				Messages:  toAnthropicMessages(req.Messages),
			}
			if req.System != "" {
				params.System = []anthropic.TextBlockParam{{Text: req.System}}
			}
			for _, t := range req.Tools {
				params.Tools = append(params.Tools, anthropic.ToolUnionParam{
					OfTool: &anthropic.ToolParam{
						Name:        t.Name,
						Description: anthropic.String(t.Description),
						InputSchema: anthropic.ToolInputSchemaParam{},
					},
				})
			}

			msg, err := client.Messages.New(ctx, params)
			if err != nil {
				return nil, fmt.Errorf("anthropic: %w", err)
			}
			return fromAnthropicMessage(msg, model), nil
		},
	}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}

func toAnthropicMessages(msgs []llm.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "tool":
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func fromAnthropicMessage(msg *anthropic.Message, model string) *llm.CompletionResponse {
	resp := &llm.CompletionResponse{
		FinishReason: string(msg.StopReason),
		InTokens:     int(msg.Usage.InputTokens),
		OutTokens:    int(msg.Usage.OutputTokens),
	}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
				ID:    b.ID,
				Name:  b.Name,
				Input: b.Input,
			})
		}
	}
	resp.CostUSD = estimateCost(anthropicPricing, model, resp.InTokens, resp.OutTokens)
	return resp
}

func estimateCost(table map[string][2]float64, model string, inTok, outTok int) float64 {
	for key, price := range table {
		if len(model) >= len(key) && model[:len(key)] == key {
			return (float64(inTok)/1_000_000)*price[0] + (float64(outTok)/1_000_000)*price[1]
		}
	}
	return 0
}
