package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/horizon/internal/infra/config"
	"github.com/yanqian/horizon/internal/infra/diagnostics"
	"github.com/yanqian/horizon/internal/infra/llm/chatgpt"
	"github.com/yanqian/horizon/internal/infra/llm/gemini"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProvideDiagnosticsSinkDefaultsToDiscard(t *testing.T) {
	sink := provideDiagnosticsSink(&config.Config{}, discardLogger())
	require.IsType(t, diagnostics.Discard{}, sink)
}

func TestProvideGenerator(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{Provider: config.ProviderGemini, APIKey: "key"}}
	gen, err := provideGenerator(cfg, discardLogger())
	require.NoError(t, err)
	require.IsType(t, &gemini.Client{}, gen)

	cfg.LLM.Provider = config.ProviderOpenAI
	gen, err = provideGenerator(cfg, discardLogger())
	require.NoError(t, err)
	require.IsType(t, &chatgpt.Client{}, gen)

	cfg.LLM.APIKey = ""
	_, err = provideGenerator(cfg, discardLogger())
	require.Error(t, err)
}
