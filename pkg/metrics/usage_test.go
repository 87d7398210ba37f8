package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	require.Zero(t, EstimateTokens("   "))
	require.Positive(t, EstimateTokens("Find the exact sunrise time for Paris."))
}

func TestEstimateTokensUsesEmbeddedEncoding(t *testing.T) {
	text := "Find the exact sunrise time for Paris."
	count := EstimateTokens(text)
	require.NotNil(t, encoder)
	require.Greater(t, count, len(strings.Fields(text)))
}

func TestTokenUsageIsZero(t *testing.T) {
	require.True(t, TokenUsage{}.IsZero())
	require.False(t, TokenUsage{PromptTokens: 3}.IsZero())
}
