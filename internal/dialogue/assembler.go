package dialogue

import (
	"fmt"
	"strings"

	"github.com/trilogue/trilogue-backend/internal/persona"
)

// AssemblerInput carries everything needed to build one persona's prompt.
type AssemblerInput struct {
	Topic          string
	Messages       []ConversationMessage
	IsFirstMessage bool
	Persona        persona.Persona
	Files          []FileDescriptor
	LegacySummary  string
	Rounds         []DiscussionRound
	CurrentSummary *SummaryEntry
	Summaries      []SummaryEntry
	UserAnswers    []UserAnswer
	CurrentRound   int
}

// BuildPrompt renders the literal prompt text sent to a persona. The layout
// is: summaries (oldest first), the current summary, a transcript of rounds
// newer than the current summary, at most one trailing partial round, file
// descriptors, user answers, and finally the instruction that tells the
// persona which exchange it is contributing to and whom to engage.
func BuildPrompt(in AssemblerInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The discussion topic is: %q\n\n", in.Topic)

	if in.IsFirstMessage {
		b.WriteString("You are opening this discussion. Introduce the topic from your perspective, ")
		b.WriteString("identify the key aspects worth examining, and set the stage for the Solver and Moderator to build on.\n")
		writeFiles(&b, in.Files)
		return b.String()
	}

	writeSummaries(&b, in)
	writeTranscript(&b, in)
	writeFiles(&b, in.Files)
	writeUserAnswers(&b, in)
	writeInstruction(&b, in)

	return b.String()
}

func writeSummaries(b *strings.Builder, in AssemblerInput) {
	for _, s := range in.Summaries {
		if in.CurrentSummary != nil && s.AtRound == in.CurrentSummary.AtRound {
			continue
		}
		fmt.Fprintf(b, "[Summary through Round %d]\n%s\n\n", s.AtRound, s.Text)
	}

	// The current summary always wins over the legacy single-string field.
	switch {
	case in.CurrentSummary != nil:
		fmt.Fprintf(b, "Current summary of the discussion so far (through Round %d):\n%s\n\n",
			in.CurrentSummary.AtRound, in.CurrentSummary.Text)
	case trimmedLen(in.LegacySummary) > 0:
		fmt.Fprintf(b, "Summary of the discussion so far:\n%s\n\n", in.LegacySummary)
	}
}

func writeTranscript(b *strings.Builder, in AssemblerInput) {
	cutoff := 0
	if in.CurrentSummary != nil {
		cutoff = in.CurrentSummary.AtRound
	}

	var partial *DiscussionRound
	wrote := false
	for i := range in.Rounds {
		r := &in.Rounds[i]
		if r.Number <= cutoff {
			continue
		}
		if r.IsComplete() {
			if !wrote {
				b.WriteString("Discussion so far:\n\n")
				wrote = true
			}
			fmt.Fprintf(b, "[Round %d]\n", r.Number)
			for _, p := range persona.AIPersonas {
				fmt.Fprintf(b, "%s: %s\n", p.DisplayName(), r.Message(p).Content)
			}
			b.WriteString("\n")
		} else if r.IsPartial() {
			partial = r
		}
	}

	if partial != nil {
		if !wrote {
			b.WriteString("Discussion so far:\n\n")
		}
		fmt.Fprintf(b, "[Round %d — in progress]\n", partial.Number)
		for _, p := range persona.AIPersonas {
			if m := partial.Message(p); hasContent(m) {
				fmt.Fprintf(b, "%s: %s\n", p.DisplayName(), m.Content)
			}
		}
		b.WriteString("\n")
	}
}

func writeFiles(b *strings.Builder, files []FileDescriptor) {
	if len(files) == 0 {
		return
	}
	b.WriteString("The user attached the following files for reference:\n")
	for _, f := range files {
		fmt.Fprintf(b, "- %s (%s, %.1f KB)\n", f.Name, f.MimeType, float64(f.Size)/1024)
	}
	b.WriteString("\n")
}

func writeUserAnswers(b *strings.Builder, in AssemblerInput) {
	if len(in.UserAnswers) == 0 {
		return
	}
	b.WriteString("The user answered the following questions:\n")
	for _, ans := range in.UserAnswers {
		q := findQuestion(in.Rounds, ans.QuestionID)
		if q == nil {
			continue
		}
		fmt.Fprintf(b, "Q: %s\n", q.Text)
		for _, optID := range ans.OptionIDs {
			for _, opt := range q.Options {
				if opt.ID == optID {
					fmt.Fprintf(b, "A: %s\n", opt.Text)
				}
			}
		}
	}
	b.WriteString("\n")
}

// findQuestion looks the question up in the nearest round carrying it,
// searching newest rounds first.
func findQuestion(rounds []DiscussionRound, questionID string) *Question {
	for i := len(rounds) - 1; i >= 0; i-- {
		qs := rounds[i].Questions
		if qs == nil {
			continue
		}
		for j := range qs.Questions {
			if qs.Questions[j].ID == questionID {
				return &qs.Questions[j]
			}
		}
	}
	return nil
}

// lastSpeaker determines who produced the most recent AI message across the
// rounds: the last filled slot of a partial round, otherwise the Moderator
// of the last complete round.
func lastSpeaker(rounds []DiscussionRound) (persona.Persona, bool) {
	for i := len(rounds) - 1; i >= 0; i-- {
		r := &rounds[i]
		if r.IsComplete() {
			return persona.Moderator, true
		}
		if r.IsPartial() {
			last := persona.Persona("")
			for _, p := range persona.AIPersonas {
				if hasContent(r.Message(p)) {
					last = p
				}
			}
			return last, true
		}
	}
	return "", false
}

// exchangeNumber is the position the upcoming utterance takes in the whole
// dialogue: one past the count of AI messages already produced.
func exchangeNumber(rounds []DiscussionRound) int {
	count := 0
	for i := range rounds {
		for _, p := range persona.AIPersonas {
			if hasContent(rounds[i].Message(p)) {
				count++
			}
		}
	}
	return count + 1
}

func writeInstruction(b *strings.Builder, in AssemblerInput) {
	fmt.Fprintf(b, "We are now in Round %d of the discussion. This is Exchange %d.\n",
		in.CurrentRound, exchangeNumber(in.Rounds))

	if len(in.Messages) > 0 && in.Messages[len(in.Messages)-1].Persona == persona.User {
		fmt.Fprintf(b, "The user has just spoken. As the %s, address the user's input directly before continuing the dialogue with your peers.\n",
			in.Persona.DisplayName())
		return
	}

	if speaker, ok := lastSpeaker(in.Rounds); ok {
		fmt.Fprintf(b, "As the %s, engage directly with the %s's last statement: build on it, challenge it, or refine it.\n",
			in.Persona.DisplayName(), speaker.DisplayName())
		return
	}

	fmt.Fprintf(b, "As the %s, contribute your perspective on the topic.\n", in.Persona.DisplayName())
}
