package providers

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/pkg/models"
)

var openaiPricing = map[string][2]float64{
	"gpt-4o":      {2.5, 10.0},
	"gpt-4o-mini": {0.15, 0.6},
	"gpt-4":       {30.0, 60.0},
}

// NewOpenAI builds an llm.Provider backed by the OpenAI Chat Completions API.
func NewOpenAI(apiKey, defaultModel string) llm.Provider {
	client := openai.NewClient(apiKey)
	return llm.Provider{
		Name: "openai",
		Complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			model := req.Model
			if model == "" {
				model = defaultModel
			}

			chatReq := openai.ChatCompletionRequest{
				Model:     model,
				MaxTokens: maxTokensOrDefault(req.MaxTokens),
				Messages:  toOpenAIMessages(req.System, req.Messages),
			}
			for _, t := range req.Tools {
				var schema map[string]any
				_ = json.Unmarshal(t.Schema, &schema)
				chatReq.Tools = append(chatReq.Tools, openai.Tool{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        t.Name,
						Description: t.Description,
						Parameters:  schema,
					},
				})
			}

			resp, err := client.CreateChatCompletion(ctx, chatReq)
			if err != nil {
				return nil, fmt.Errorf("openai: %w", err)
			}
			return fromOpenAIResponse(resp, model), nil
		},
	}
}

func toOpenAIMessages(system string, msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case "tool":
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case "assistant":
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse, model string) *llm.CompletionResponse {
	out := &llm.CompletionResponse{
		InTokens:  resp.Usage.PromptTokens,
		OutTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Text = choice.Message.Content
		out.FinishReason = string(choice.FinishReason)
		for _, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: []byte(tc.Function.Arguments),
			})
		}
	}
	out.CostUSD = estimateCost(openaiPricing, model, out.InTokens, out.OutTokens)
	return out
}
