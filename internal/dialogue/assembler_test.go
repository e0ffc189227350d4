package dialogue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trilogue/trilogue-backend/internal/persona"
)

func TestBuildPromptFirstMessage(t *testing.T) {
	prompt := BuildPrompt(AssemblerInput{
		Topic:          "How to improve productivity?",
		IsFirstMessage: true,
		Persona:        persona.Analyzer,
		CurrentRound:   1,
	})

	assert.Contains(t, prompt, `The discussion topic is: "How to improve productivity?"`)
	assert.Contains(t, prompt, "You are opening this discussion")
	assert.NotContains(t, prompt, "Discussion so far")
	assert.NotContains(t, prompt, "Exchange")
}

func TestBuildPromptSecondRoundExchangeNumbering(t *testing.T) {
	r1 := completeRound(1)

	prompt := BuildPrompt(AssemblerInput{
		Topic:        "How to improve productivity?",
		Persona:      persona.Analyzer,
		Rounds:       []DiscussionRound{r1},
		CurrentRound: 2,
	})

	// Three AI messages already exist, so the Analyzer opening round 2 is
	// the fourth utterance of the dialogue.
	assert.Contains(t, prompt, "We are now in Round 2 of the discussion. This is Exchange 4.")
	assert.NotContains(t, prompt, "Exchange 2")

	assert.Contains(t, prompt, "[Round 1]")
	assert.Contains(t, prompt, "Analyzer: analysis")
	assert.Contains(t, prompt, "Solver: solution")
	assert.Contains(t, prompt, "Moderator: synthesis")

	// The Moderator spoke last in round 1.
	assert.Contains(t, prompt, "As the Analyzer, engage directly with the Moderator's last statement")
}

func TestBuildPromptMidRoundPartialView(t *testing.T) {
	r1 := completeRound(1)
	analyzer := NewMessage("d1", persona.Analyzer, "fresh analysis", persona.TurnNumber(2, persona.Analyzer))
	partial := DiscussionRound{Number: 2, Analyzer: &analyzer}

	prompt := BuildPrompt(AssemblerInput{
		Topic:        "How to improve productivity?",
		Persona:      persona.Solver,
		Rounds:       []DiscussionRound{r1, partial},
		CurrentRound: 2,
	})

	assert.Contains(t, prompt, "[Round 2 — in progress]")
	assert.Contains(t, prompt, "Analyzer: fresh analysis")
	assert.Contains(t, prompt, "This is Exchange 5.")
	assert.Contains(t, prompt, "As the Solver, engage directly with the Analyzer's last statement")
}

func TestBuildPromptSummariesReplaceOldRounds(t *testing.T) {
	r1 := completeRound(1)
	r2 := completeRound(2)
	r3 := completeRound(3)
	current := &SummaryEntry{Text: "they argued about focus", AtRound: 2}

	prompt := BuildPrompt(AssemblerInput{
		Topic:          "How to improve productivity?",
		Persona:        persona.Analyzer,
		Rounds:         []DiscussionRound{r1, r2, r3},
		CurrentSummary: current,
		Summaries:      []SummaryEntry{{Text: "older summary", AtRound: 1}, *current},
		CurrentRound:   4,
	})

	assert.Contains(t, prompt, "Current summary of the discussion so far (through Round 2):\nthey argued about focus")
	assert.Contains(t, prompt, "[Summary through Round 1]\nolder summary")
	// Rounds at or before the summary cutoff never appear verbatim.
	assert.NotContains(t, prompt, "[Round 1]")
	assert.NotContains(t, prompt, "[Round 2]")
	assert.Contains(t, prompt, "[Round 3]")
}

func TestBuildPromptLegacySummaryLosesToCurrent(t *testing.T) {
	in := AssemblerInput{
		Topic:         "x",
		Persona:       persona.Analyzer,
		LegacySummary: "legacy text",
		CurrentRound:  2,
	}
	prompt := BuildPrompt(in)
	assert.Contains(t, prompt, "Summary of the discussion so far:\nlegacy text")

	in.CurrentSummary = &SummaryEntry{Text: "current text", AtRound: 1}
	prompt = BuildPrompt(in)
	assert.Contains(t, prompt, "current text")
	assert.NotContains(t, prompt, "legacy text")
}

func TestBuildPromptFiles(t *testing.T) {
	prompt := BuildPrompt(AssemblerInput{
		Topic:          "x",
		IsFirstMessage: true,
		Persona:        persona.Analyzer,
		Files: []FileDescriptor{
			{Name: "notes.txt", MimeType: "text/plain", Size: 2048},
		},
		CurrentRound: 1,
	})

	assert.Contains(t, prompt, "The user attached the following files for reference:")
	assert.Contains(t, prompt, "- notes.txt (text/plain, 2.0 KB)")
}

func TestBuildPromptUserAnswers(t *testing.T) {
	r1 := completeRound(1)
	r1.Questions = &QuestionSet{Questions: []Question{
		{
			ID:   "q1",
			Text: "Which area matters most?",
			Options: []Option{
				{ID: "a", Text: "Deep work"},
				{ID: "b", Text: "Meetings"},
			},
		},
	}}

	prompt := BuildPrompt(AssemblerInput{
		Topic:        "How to improve productivity?",
		Persona:      persona.Analyzer,
		Rounds:       []DiscussionRound{r1},
		UserAnswers:  []UserAnswer{{QuestionID: "q1", OptionIDs: []string{"b"}}},
		CurrentRound: 2,
	})

	assert.Contains(t, prompt, "The user answered the following questions:")
	assert.Contains(t, prompt, "Q: Which area matters most?")
	assert.Contains(t, prompt, "A: Meetings")
	assert.NotContains(t, prompt, "A: Deep work")
}

func TestBuildPromptAddressesUserInput(t *testing.T) {
	r1 := completeRound(1)
	user := NewMessage("d1", persona.User, "please focus on remote teams", 0)

	prompt := BuildPrompt(AssemblerInput{
		Topic:        "How to improve productivity?",
		Messages:     []ConversationMessage{*r1.Analyzer, *r1.Solver, *r1.Moderator, user},
		Persona:      persona.Analyzer,
		Rounds:       []DiscussionRound{r1},
		CurrentRound: 2,
	})

	assert.Contains(t, prompt, "The user has just spoken. As the Analyzer, address the user's input directly")
	assert.NotContains(t, prompt, "engage directly with the Moderator's")
}

func TestExchangeNumberCountsFilledSlots(t *testing.T) {
	require.Equal(t, 1, exchangeNumber(nil))

	r1 := completeRound(1)
	assert.Equal(t, 4, exchangeNumber([]DiscussionRound{r1}))

	analyzer := NewMessage("d1", persona.Analyzer, "a", 4)
	partial := DiscussionRound{Number: 2, Analyzer: &analyzer}
	assert.Equal(t, 5, exchangeNumber([]DiscussionRound{r1, partial}))
}

func TestBuildPromptSectionOrder(t *testing.T) {
	r1 := completeRound(1)
	prompt := BuildPrompt(AssemblerInput{
		Topic:          "x",
		Persona:        persona.Analyzer,
		Rounds:         []DiscussionRound{r1},
		CurrentSummary: nil,
		Files:          []FileDescriptor{{Name: "f", MimeType: "text/plain", Size: 100}},
		CurrentRound:   2,
	})

	topicIdx := strings.Index(prompt, "The discussion topic is")
	transcriptIdx := strings.Index(prompt, "Discussion so far:")
	filesIdx := strings.Index(prompt, "The user attached")
	instructionIdx := strings.Index(prompt, "We are now in Round 2")

	require.True(t, topicIdx >= 0 && transcriptIdx > 0 && filesIdx > 0 && instructionIdx > 0)
	assert.Less(t, topicIdx, transcriptIdx)
	assert.Less(t, transcriptIdx, filesIdx)
	assert.Less(t, filesIdx, instructionIdx)
}
