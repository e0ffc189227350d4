package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/persona"
	"github.com/trilogue/trilogue-backend/internal/providers"
)

// Persona system prompts. Each asks for 2-4 paragraphs, which is what the
// completion policy's length thresholds are tuned against.
const (
	analyzerSystemPrompt = `You are the Analyzer in a three-way AI discussion. Your role is to break the topic down: identify assumptions, surface hidden constraints, and frame the questions that matter. Respond in 2-4 substantial paragraphs (roughly 300-500 words). Speak directly to your fellow discussants, not about them.`

	solverSystemPrompt = `You are the Solver in a three-way AI discussion. Your role is to propose concrete approaches to the problems the Analyzer has framed: specific steps, trade-offs, and practical recommendations. Respond in 2-4 substantial paragraphs (roughly 300-500 words). Engage directly with what the Analyzer just said.`

	moderatorSystemPrompt = `You are the Moderator in a three-way AI discussion. Your role is to weigh the Analyzer's framing against the Solver's proposals, point out where they agree or conflict, and steer the discussion forward. When user input would genuinely help, you may pose questions by appending a fenced json block of the form {"questions": [{"id": "...", "text": "...", "options": [{"id": "...", "text": "..."}]}]}. Respond in 2-4 substantial paragraphs (roughly 300-500 words).`
)

func systemPrompt(p persona.Persona) string {
	switch p {
	case persona.Analyzer:
		return analyzerSystemPrompt
	case persona.Solver:
		return solverSystemPrompt
	case persona.Moderator:
		return moderatorSystemPrompt
	}
	return ""
}

// GeneratorService implements dialogue.Generator on top of the provider
// registry and the shared completion policy.
type GeneratorService struct {
	registry        *providers.Registry
	defaultProvider string
	dialogueCfg     config.DialogueConfig
	log             *logrus.Entry
}

// NewGeneratorService creates a generator bound to the configured default
// provider.
func NewGeneratorService(registry *providers.Registry, defaultProvider string, dialogueCfg config.DialogueConfig) *GeneratorService {
	return &GeneratorService{
		registry:        registry,
		defaultProvider: defaultProvider,
		dialogueCfg:     dialogueCfg,
		log:             logrus.WithField("component", "generator"),
	}
}

// CompletionConfig maps the dialogue configuration onto the provider
// completion thresholds.
func (g *GeneratorService) CompletionConfig() providers.CompletionConfig {
	cfg := providers.DefaultCompletionConfig()
	d := g.dialogueCfg
	if d.CharsPerToken > 0 {
		cfg.CharsPerToken = d.CharsPerToken
	}
	if d.BudgetUsedRatio > 0 {
		cfg.BudgetUsedRatio = d.BudgetUsedRatio
	}
	if d.ShortStopChars > 0 {
		cfg.ShortStopChars = d.ShortStopChars
	}
	if d.VeryShortChars > 0 {
		cfg.VeryShortChars = d.VeryShortChars
	}
	if d.MidSentenceChars > 0 {
		cfg.MidSentenceChars = d.MidSentenceChars
	}
	if d.LongStopRatio > 0 {
		cfg.LongStopRatio = d.LongStopRatio
	}
	if d.LongStopMinChars > 0 {
		cfg.LongStopMinChars = d.LongStopMinChars
	}
	if d.MinContinuationTokens > 0 {
		cfg.MinContinuationTokens = d.MinContinuationTokens
	}
	return cfg
}

// Generate implements dialogue.Generator: one streamed, completion-wrapped
// call for a persona's response.
func (g *GeneratorService) Generate(ctx context.Context, p persona.Persona, prompt string, onChunk func(delta string)) (*dialogue.GenerationResult, error) {
	provider := g.registry.Get(g.defaultProvider)
	if provider == nil {
		return nil, fmt.Errorf("provider %q is not registered", g.defaultProvider)
	}

	temp := g.dialogueCfg.Temperature
	req := providers.StreamRequest{
		System:      systemPrompt(p),
		Messages:    []providers.Message{{Role: "user", Content: prompt}},
		MaxTokens:   g.dialogueCfg.MaxTokens,
		Temperature: &temp,
	}

	start := time.Now()
	result, err := providers.StreamWithCompletion(ctx, provider, req, g.CompletionConfig(), func(chunk providers.StreamChunk) {
		if chunk.Delta != "" && onChunk != nil {
			onChunk(chunk.Delta)
		}
	})
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"persona":    p,
		"provider":   provider.Name(),
		"latency_ms": time.Since(start).Milliseconds(),
		"chars":      len(result.Text),
	}).Debug("generation completed")

	return &dialogue.GenerationResult{
		Persona:      p,
		Text:         result.Text,
		FinishReason: result.FinishReason,
	}, nil
}
