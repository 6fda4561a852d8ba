package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateCost_MatchesModelPrefix(t *testing.T) {
	cost := estimateCost(anthropicPricing, "claude-sonnet-4-20250514", 1_000_000, 1_000_000)
	require.InDelta(t, 18.0, cost, 0.001)
}

func TestEstimateCost_UnknownModelIsZero(t *testing.T) {
	cost := estimateCost(anthropicPricing, "some-unlisted-model", 1_000_000, 1_000_000)
	require.Equal(t, 0.0, cost)
}

func TestMaxTokensOrDefault(t *testing.T) {
	require.Equal(t, 4096, maxTokensOrDefault(0))
	require.Equal(t, 4096, maxTokensOrDefault(-5))
	require.Equal(t, 2048, maxTokensOrDefault(2048))
}
