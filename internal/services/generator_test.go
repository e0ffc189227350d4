package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/persona"
	"github.com/trilogue/trilogue-backend/internal/providers"
)

type stubProvider struct {
	result *providers.StreamResult
	last   providers.StreamRequest
}

func (p *stubProvider) Name() string          { return "stub" }
func (p *stubProvider) ValidateConfig() error { return nil }

func (p *stubProvider) Stream(ctx context.Context, req providers.StreamRequest, onChunk providers.ChunkHandler) (*providers.StreamResult, error) {
	p.last = req
	if onChunk != nil {
		onChunk(providers.StreamChunk{Delta: p.result.Text})
		onChunk(providers.StreamChunk{FinishReason: p.result.FinishReason})
	}
	return p.result, nil
}

func testDialogueConfig() config.DialogueConfig {
	return config.DialogueConfig{
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

// longAnswer reads as a finished response to the completion policy with a
// 1024-token budget.
func longAnswer() string {
	return strings.TrimSpace(strings.Repeat("The constraint worth examining first is attention, not hours. ", 30))
}

func TestSystemPromptPerPersona(t *testing.T) {
	assert.Contains(t, systemPrompt(persona.Analyzer), "You are the Analyzer")
	assert.Contains(t, systemPrompt(persona.Solver), "You are the Solver")
	assert.Contains(t, systemPrompt(persona.Moderator), "You are the Moderator")
	assert.Empty(t, systemPrompt(persona.User))
}

func TestGeneratorUsesPersonaSystemPrompt(t *testing.T) {
	stub := &stubProvider{result: &providers.StreamResult{Text: longAnswer(), FinishReason: "stop"}}
	registry := providers.NewRegistry()
	registry.Register("stub", stub)

	g := NewGeneratorService(registry, "stub", testDialogueConfig())

	var streamed strings.Builder
	result, err := g.Generate(context.Background(), persona.Solver, "the prompt", func(delta string) {
		streamed.WriteString(delta)
	})
	require.NoError(t, err)

	assert.Equal(t, persona.Solver, result.Persona)
	assert.Equal(t, longAnswer(), result.Text)
	assert.Equal(t, longAnswer(), streamed.String())

	assert.Contains(t, stub.last.System, "You are the Solver")
	require.Len(t, stub.last.Messages, 1)
	assert.Equal(t, "the prompt", stub.last.Messages[0].Content)
	assert.Equal(t, 1024, stub.last.MaxTokens)
	require.NotNil(t, stub.last.Temperature)
	assert.InDelta(t, 0.7, float64(*stub.last.Temperature), 0.001)
}

func TestGeneratorUnknownProvider(t *testing.T) {
	g := NewGeneratorService(providers.NewRegistry(), "missing", testDialogueConfig())
	_, err := g.Generate(context.Background(), persona.Analyzer, "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestCompletionConfigMapping(t *testing.T) {
	d := testDialogueConfig()
	d.CharsPerToken = 4.0
	d.ShortStopChars = 900
	g := NewGeneratorService(providers.NewRegistry(), "stub", d)

	cfg := g.CompletionConfig()
	assert.Equal(t, 4.0, cfg.CharsPerToken)
	assert.Equal(t, 900, cfg.ShortStopChars)

	// Unset fields keep the tuned defaults.
	defaults := providers.DefaultCompletionConfig()
	assert.Equal(t, defaults.BudgetUsedRatio, cfg.BudgetUsedRatio)
	assert.Equal(t, defaults.MinContinuationTokens, cfg.MinContinuationTokens)
}
