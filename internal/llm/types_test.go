package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuspectedTruncated_LengthFinishReasonAlwaysFlags(t *testing.T) {
	for _, reason := range []string{"length", "max_tokens", "MAX_TOKENS", "content_filter"} {
		resp := &CompletionResponse{FinishReason: reason, OutTokens: 5, Text: "ok."}
		require.True(t, SuspectedTruncated(resp), "reason %q should flag regardless of length", reason)
	}
}

func TestSuspectedTruncated_ShortStopResponseNeverFlags(t *testing.T) {
	resp := &CompletionResponse{FinishReason: "stop", OutTokens: 10, Text: "the next step is to"}
	require.False(t, SuspectedTruncated(resp))
}

func TestSuspectedTruncated_LongStopResponseWithoutPunctuationFlags(t *testing.T) {
	resp := &CompletionResponse{
		FinishReason: "stop",
		OutTokens:    1200,
		Text:         "the next step is to",
	}
	require.True(t, SuspectedTruncated(resp))
}

func TestSuspectedTruncated_LongStopResponseEndingInPunctuationDoesNotFlag(t *testing.T) {
	resp := &CompletionResponse{
		FinishReason: "stop",
		OutTokens:    1200,
		Text:         "here is the final answer.",
	}
	require.False(t, SuspectedTruncated(resp))
}

func TestSuspectedTruncated_ClosedCodeBlockIsNotFlagged(t *testing.T) {
	resp := &CompletionResponse{
		FinishReason: "stop",
		OutTokens:    1200,
		Text:         "```go\nfunc main() {}\n```",
	}
	require.False(t, SuspectedTruncated(resp))
}

func TestSuspectedTruncated_UnclosedCodeBlockIsFlagged(t *testing.T) {
	resp := &CompletionResponse{
		FinishReason: "stop",
		OutTokens:    1200,
		Text:         "```go\nfunc main() {",
	}
	require.True(t, SuspectedTruncated(resp))
	require.False(t, strings.HasSuffix(resp.Text, "```"))
}
