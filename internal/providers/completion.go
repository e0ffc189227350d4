package providers

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// CompletionConfig holds the truncation-detection thresholds. The defaults
// were tuned empirically against the personas' 2-4 paragraph prompts; they
// are configuration, not invariants.
type CompletionConfig struct {
	// CharsPerToken is the estimated characters per token.
	CharsPerToken float64 `json:"chars_per_token"`
	// BudgetUsedRatio triggers continuation when the estimated token count
	// reaches this share of the call's max-token budget.
	BudgetUsedRatio float64 `json:"budget_used_ratio"`
	// ShortStopChars: a "stop" response shorter than this is suspect (the
	// persona prompts ask for roughly 1200-2000 characters).
	ShortStopChars int `json:"short_stop_chars"`
	// VeryShortChars: responses shorter than this are extended regardless
	// of other signals when the finish reason is "stop".
	VeryShortChars int `json:"very_short_chars"`
	// MidSentenceChars: responses longer than this without terminal
	// punctuation are treated as cut off mid-sentence.
	MidSentenceChars int `json:"mid_sentence_chars"`
	// LongStopRatio and LongStopMinChars catch silent truncation: a "stop"
	// response longer than LongStopMinChars but shorter than LongStopRatio
	// of the estimated character budget is extended.
	LongStopRatio    float64 `json:"long_stop_ratio"`
	LongStopMinChars int     `json:"long_stop_min_chars"`
	// MinContinuationTokens floors the continuation call's token budget.
	MinContinuationTokens int `json:"min_continuation_tokens"`
}

// DefaultCompletionConfig returns the tuned thresholds.
func DefaultCompletionConfig() CompletionConfig {
	return CompletionConfig{
		CharsPerToken:         3.5,
		BudgetUsedRatio:       0.55,
		ShortStopChars:        1200,
		VeryShortChars:        600,
		MidSentenceChars:      200,
		LongStopRatio:         0.5,
		LongStopMinChars:      500,
		MinContinuationTokens: 50,
	}
}

// trailingConnectors are words a response never legitimately ends on.
var trailingConnectors = map[string]struct{}{
	"and": {}, "or": {}, "but": {}, "so": {}, "yet": {},
	"however": {}, "because": {}, "therefore": {}, "moreover": {},
	"furthermore": {}, "additionally": {}, "meanwhile": {},
	"consequently": {}, "although": {}, "while": {}, "since": {}, "thus": {},
}

// trailingPrepositions mark a clause left hanging when they precede the
// final word of an unterminated response.
var trailingPrepositions = map[string]struct{}{
	"in": {}, "on": {}, "at": {}, "to": {}, "of": {}, "for": {},
	"with": {}, "from": {}, "by": {}, "about": {}, "into": {}, "over": {},
}

// ShouldComplete decides whether a streamed response looks truncated and
// must be extended with a continuation call. Each heuristic in the
// disjunction is independently sufficient.
func ShouldComplete(text, finishReason string, maxTokens int, cfg CompletionConfig) (bool, string) {
	trimmed := strings.TrimSpace(text)
	length := len(trimmed)

	if finishReason == "length" {
		return true, "provider reported length truncation"
	}
	if finishReason == "" {
		return true, "provider reported no finish reason"
	}

	estTokens := float64(length) / cfg.CharsPerToken
	if maxTokens > 0 && estTokens >= cfg.BudgetUsedRatio*float64(maxTokens) {
		return true, fmt.Sprintf("estimated %d tokens used %.0f%% of budget", int(estTokens), 100*estTokens/float64(maxTokens))
	}

	if finishReason == "stop" && length < cfg.VeryShortChars {
		return true, fmt.Sprintf("response is only %d characters", length)
	}
	if finishReason == "stop" && length < cfg.ShortStopChars {
		return true, fmt.Sprintf("response is %d characters, below expected length", length)
	}

	if endsMidThought(trimmed, cfg) {
		return true, "response ends mid-thought"
	}

	if finishReason == "stop" && maxTokens > 0 && length > cfg.LongStopMinChars &&
		float64(length) < cfg.LongStopRatio*float64(maxTokens)*cfg.CharsPerToken {
		return true, "response is short relative to its token budget"
	}

	return false, ""
}

// endsMidThought checks the structural truncation signals: a long response
// without terminal punctuation, a hanging preposition, an unbalanced
// double quote, or a trailing connector word.
func endsMidThought(trimmed string, cfg CompletionConfig) bool {
	if trimmed == "" {
		return false
	}

	hasTerminal := strings.ContainsRune(".!?", rune(trimmed[len(trimmed)-1]))
	if !hasTerminal && len(trimmed) > cfg.MidSentenceChars {
		return true
	}

	if strings.Count(trimmed, `"`)%2 != 0 {
		return true
	}

	words := strings.Fields(trimmed)
	if len(words) == 0 {
		return false
	}

	last := strings.ToLower(strings.TrimRight(words[len(words)-1], `.,;:!?"'`))
	if _, ok := trailingConnectors[last]; ok && !hasTerminal {
		return true
	}

	if !hasTerminal && len(words) >= 2 {
		prev := strings.ToLower(words[len(words)-2])
		if _, ok := trailingPrepositions[prev]; ok {
			return true
		}
	}

	return false
}

// ContinuationBudget returns the max-token budget for a continuation call.
// Shorter truncated responses get a proportionally larger budget.
func ContinuationBudget(maxTokens, textLen int, cfg CompletionConfig) int {
	pct := 0.2
	switch {
	case textLen < 100:
		pct = 0.4
	case textLen < 200:
		pct = 0.3
	}

	budget := int(math.Ceil(float64(maxTokens) * pct))
	if budget < cfg.MinContinuationTokens {
		budget = cfg.MinContinuationTokens
	}
	return budget
}

// StreamWithCompletion wraps a provider's raw streaming call with the
// shared truncation policy. Chunks from the initial call are forwarded
// first; the continuation call only starts after the initial stream ends,
// so chunks never interleave across the two calls.
func StreamWithCompletion(ctx context.Context, p Provider, req StreamRequest, cfg CompletionConfig, onChunk ChunkHandler) (*StreamResult, error) {
	result, err := p.Stream(ctx, req, onChunk)
	if err != nil {
		return nil, err
	}

	need, reason := ShouldComplete(result.Text, result.FinishReason, req.MaxTokens, cfg)
	if !need {
		return result, nil
	}

	logrus.WithFields(logrus.Fields{
		"provider": p.Name(),
		"reason":   reason,
	}).Debug("extending truncated response")

	contReq := req
	contReq.MaxTokens = ContinuationBudget(req.MaxTokens, len(strings.TrimSpace(result.Text)), cfg)
	contReq.Messages = append(append([]Message{}, req.Messages...),
		Message{Role: "assistant", Content: result.Text},
		Message{Role: "user", Content: "Your previous response was cut off. Continue exactly where you left off and finish the thought. Do not repeat what you already wrote."},
	)

	cont, err := p.Stream(ctx, contReq, onChunk)
	if err != nil {
		return nil, fmt.Errorf("continuation call: %w", err)
	}
	if strings.TrimSpace(cont.Text) == "" {
		return nil, fmt.Errorf("continuation call returned empty text")
	}

	// Direct concatenation: a response truncated mid-word must be resumed
	// without an injected separator.
	return &StreamResult{Text: result.Text + cont.Text, FinishReason: cont.FinishReason}, nil
}
