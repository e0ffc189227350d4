package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays canned results, one per Stream call.
type scriptedProvider struct {
	results []*StreamResult
	calls   []StreamRequest
}

func (p *scriptedProvider) Name() string          { return "scripted" }
func (p *scriptedProvider) ValidateConfig() error { return nil }

func (p *scriptedProvider) Stream(ctx context.Context, req StreamRequest, onChunk ChunkHandler) (*StreamResult, error) {
	idx := len(p.calls)
	p.calls = append(p.calls, req)
	if idx >= len(p.results) {
		panic("scriptedProvider: unexpected extra call")
	}
	res := p.results[idx]
	if onChunk != nil {
		onChunk(StreamChunk{Delta: res.Text})
		onChunk(StreamChunk{FinishReason: res.FinishReason})
	}
	return res, nil
}

// finishedText builds a response that, against a 1024-token budget, trips
// none of the truncation heuristics: long enough to clear the short-stop
// and long-stop thresholds, short enough to stay under the budget ratio,
// and cleanly terminated.
func finishedText() string {
	sentence := "The team should protect two uninterrupted hours every morning for focused work. "
	text := strings.Repeat(sentence, 23) // ~1840 chars
	return strings.TrimSpace(text)
}

func TestShouldCompleteLengthAlwaysTriggers(t *testing.T) {
	cfg := DefaultCompletionConfig()
	need, reason := ShouldComplete(finishedText(), "length", 1024, cfg)
	assert.True(t, need)
	assert.Contains(t, reason, "length truncation")
}

func TestShouldCompleteMissingFinishReason(t *testing.T) {
	need, _ := ShouldComplete(finishedText(), "", 1024, DefaultCompletionConfig())
	assert.True(t, need)
}

func TestShouldCompleteCleanStopIsIdempotent(t *testing.T) {
	cfg := DefaultCompletionConfig()
	text := finishedText()

	// A well-formed stop response must not be extended, no matter how many
	// times the policy inspects it.
	for i := 0; i < 3; i++ {
		need, reason := ShouldComplete(text, "stop", 1024, cfg)
		assert.False(t, need, "iteration %d: %s", i, reason)
	}
}

func TestShouldCompleteShortStop(t *testing.T) {
	cfg := DefaultCompletionConfig()

	need, reason := ShouldComplete("Too brief.", "stop", 1024, cfg)
	assert.True(t, need)
	assert.Contains(t, reason, "characters")

	// Between VeryShortChars and ShortStopChars still counts as suspect.
	mid := strings.Repeat("Sound advice here. ", 40) // ~760 chars
	need, _ = ShouldComplete(mid, "stop", 4096, cfg)
	assert.True(t, need)
}

func TestShouldCompleteBudgetRatio(t *testing.T) {
	cfg := DefaultCompletionConfig()
	// ~1800 chars is ~514 estimated tokens; with a 256-token budget that is
	// far past the 55% mark even though the text reads as finished.
	need, reason := ShouldComplete(finishedText(), "stop", 256, cfg)
	assert.True(t, need)
	assert.Contains(t, reason, "budget")
}

func TestShouldCompleteMidThought(t *testing.T) {
	cfg := DefaultCompletionConfig()
	base := finishedText()

	tests := []struct {
		name string
		text string
	}{
		{"no terminal punctuation", base + " The next step is to measure the"},
		{"trailing connector", strings.TrimRight(base, ".") + " and"},
		{"hanging preposition", strings.TrimRight(base, ".") + " depends on the"},
		{"unbalanced quote", base + ` "Deep work is`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			need, _ := ShouldComplete(tt.text, "stop", 1024, cfg)
			assert.True(t, need)
		})
	}
}

func TestContinuationBudget(t *testing.T) {
	cfg := DefaultCompletionConfig()

	assert.Equal(t, 410, ContinuationBudget(1024, 50, cfg))  // 40%
	assert.Equal(t, 308, ContinuationBudget(1024, 150, cfg)) // 30%
	assert.Equal(t, 205, ContinuationBudget(1024, 900, cfg)) // 20%

	// Floor applies for tiny budgets.
	assert.Equal(t, cfg.MinContinuationTokens, ContinuationBudget(100, 900, cfg))
}

func TestStreamWithCompletionNoContinuationNeeded(t *testing.T) {
	p := &scriptedProvider{results: []*StreamResult{
		{Text: finishedText(), FinishReason: "stop"},
	}}

	res, err := StreamWithCompletion(context.Background(), p, StreamRequest{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 1024,
	}, DefaultCompletionConfig(), nil)

	require.NoError(t, err)
	assert.Equal(t, finishedText(), res.Text)
	assert.Len(t, p.calls, 1)
}

func TestStreamWithCompletionExtendsOnLength(t *testing.T) {
	first := strings.TrimRight(finishedText(), ". ") + " and the remaining piece is abou"
	second := "t sustaining the habit over months, which closes the argument."

	p := &scriptedProvider{results: []*StreamResult{
		{Text: first, FinishReason: "length"},
		{Text: second, FinishReason: "stop"},
	}}

	var streamed strings.Builder
	res, err := StreamWithCompletion(context.Background(), p, StreamRequest{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 1024,
	}, DefaultCompletionConfig(), func(chunk StreamChunk) {
		streamed.WriteString(chunk.Delta)
	})

	require.NoError(t, err)
	require.Len(t, p.calls, 2)

	// Mid-word truncation resumes with no injected separator.
	assert.Equal(t, first+second, res.Text)
	assert.Equal(t, "stop", res.FinishReason)
	assert.Equal(t, first+second, streamed.String())

	// The continuation call replays the conversation plus the truncated
	// response and the resume instruction.
	cont := p.calls[1]
	require.Len(t, cont.Messages, 3)
	assert.Equal(t, "assistant", cont.Messages[1].Role)
	assert.Equal(t, first, cont.Messages[1].Content)
	assert.Contains(t, cont.Messages[2].Content, "Continue exactly where you left off")
	assert.Less(t, cont.MaxTokens, 1024)
}

func TestStreamWithCompletionSingleContinuationOnly(t *testing.T) {
	// The continuation result would itself qualify for extension, but the
	// policy never chains a second continuation.
	p := &scriptedProvider{results: []*StreamResult{
		{Text: "Short start", FinishReason: "length"},
		{Text: " that still looks cut off because it is short", FinishReason: "stop"},
	}}

	res, err := StreamWithCompletion(context.Background(), p, StreamRequest{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 1024,
	}, DefaultCompletionConfig(), nil)

	require.NoError(t, err)
	assert.Len(t, p.calls, 2)
	assert.Equal(t, "Short start that still looks cut off because it is short", res.Text)
}

func TestStreamWithCompletionEmptyContinuationFails(t *testing.T) {
	p := &scriptedProvider{results: []*StreamResult{
		{Text: "Short start", FinishReason: "length"},
		{Text: "   ", FinishReason: "stop"},
	}}

	_, err := StreamWithCompletion(context.Background(), p, StreamRequest{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 1024,
	}, DefaultCompletionConfig(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
