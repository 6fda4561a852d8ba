// Package llm abstracts over concrete model providers (Anthropic, OpenAI,
// Bedrock) behind one Provider interface, and routes a task to a provider
// and model by task type with a fallback chain when the primary fails.
package llm

import (
	"context"
	"strings"

	"github.com/nexuscore/agentcore/pkg/models"
)

// Message is one provider-agnostic conversation turn, reshaped per-provider
// by each Provider implementation before it hits the wire.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []models.ToolCall
	ToolCallID string
}

// ToolDef is a tool made available to the model for this call.
type ToolDef struct {
	Name        string
	Description string
	Schema      []byte // JSON Schema, provider-neutral
}

// CompletionRequest is a provider-agnostic single-turn completion request.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// CompletionResponse is what every Provider normalizes its wire response to.
type CompletionResponse struct {
	Text         string
	ToolCalls    []models.ToolCall
	FinishReason string
	InTokens     int
	OutTokens    int
	CostUSD      float64
}

// Provider is the interface every concrete model backend implements.
type Provider struct {
	Name     string
	Complete func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// truncationTokenThreshold is the output-length floor for the silent-
// truncation heuristic (spec §4.4): shorter stop-shaped responses are never
// flagged, since a model legitimately stops early on a short reply.
const truncationTokenThreshold = 500

// SuspectedTruncated applies the finish_reason heuristic from spec §4.4.
// A length- or moderation-exhausted finish_reason is always flagged. A
// stop-shaped (or unrecognized) finish_reason is flagged only as a silent-
// truncation heuristic: the response must exceed truncationTokenThreshold
// output tokens, end without terminal punctuation, and not end with a
// closed fenced code block (closing a code fence is itself a legitimate
// stopping point).
func SuspectedTruncated(resp *CompletionResponse) bool {
	if resp == nil {
		return false
	}
	switch resp.FinishReason {
	case "length", "max_tokens", "MAX_TOKENS", "content_filter":
		return true
	}
	if resp.OutTokens <= truncationTokenThreshold {
		return false
	}
	text := strings.TrimRight(resp.Text, " \t\n")
	if text == "" {
		return false
	}
	if endsWithClosedCodeBlock(text) {
		return false
	}
	switch text[len(text)-1] {
	case '.', '!', '?', '"', '\'', '`', ')':
		return false
	}
	return true
}

// endsWithClosedCodeBlock reports whether text ends inside a fenced code
// block that has already been closed (an even, non-zero count of ``` and
// the trailing fence itself). An odd count means the last fence was opened
// but never closed, which is truncation, not a legitimate stopping point.
func endsWithClosedCodeBlock(text string) bool {
	fences := strings.Count(text, "```")
	return fences > 0 && fences%2 == 0 && strings.HasSuffix(text, "```")
}
