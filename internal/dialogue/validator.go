package dialogue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trilogue/trilogue-backend/internal/persona"
)

// ValidationResult is the outcome of a pure validation check.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func valid(message string) ValidationResult {
	return ValidationResult{Valid: true, Message: message}
}

func invalid(message string, errs ...string) ValidationResult {
	return ValidationResult{Valid: false, Message: message, Errors: errs}
}

func trimmedLen(s string) int {
	return len(strings.TrimSpace(s))
}

// ValidateRoundState checks that roundNumber is the next round for the
// discussion and that no previously persisted round was left incomplete.
// A partial persisted round means a prior run crashed mid-round; that is
// surfaced as a hard failure, never repaired here.
func ValidateRoundState(roundNumber int, existing []DiscussionRound) ValidationResult {
	if expected := len(existing) + 1; roundNumber != expected {
		return invalid(
			"round number out of sequence",
			fmt.Sprintf("expected round %d, got %d", expected, roundNumber),
		)
	}

	for i := range existing {
		if existing[i].IsPartial() {
			return invalid(
				"incomplete round found in history",
				fmt.Sprintf("round %d is missing persona responses", existing[i].Number),
			)
		}
	}

	return valid("round state is valid")
}

// ValidateCompleteness checks that a round carries non-empty content in all
// three slots and that each slot's turn number matches the turn arithmetic
// for the round. The three turns must also be consecutive.
func ValidateCompleteness(round DiscussionRound) ValidationResult {
	var errs []string

	turns := make([]int, 0, 3)
	for _, p := range persona.AIPersonas {
		msg := round.Message(p)
		if msg == nil || trimmedLen(msg.Content) == 0 {
			errs = append(errs, fmt.Sprintf("%s response is empty", p.DisplayName()))
			continue
		}
		expected := persona.TurnNumber(round.Number, p)
		if msg.Turn != expected {
			errs = append(errs, fmt.Sprintf("%s turn is %d, expected %d", p.DisplayName(), msg.Turn, expected))
		}
		turns = append(turns, msg.Turn)
	}

	if len(turns) == 3 {
		if turns[1] != turns[0]+1 || turns[2] != turns[1]+1 {
			errs = append(errs, fmt.Sprintf("turn numbers %v are not consecutive", turns))
		}
	}

	if len(errs) > 0 {
		return invalid(fmt.Sprintf("round %d is not complete", round.Number), errs...)
	}
	return valid(fmt.Sprintf("round %d is complete", round.Number))
}

// ValidatePersonaOrder checks that next may speak after last. The very
// first AI message of a discussion, or of a round with no prior message,
// must come from the Analyzer. hasLast is false when no AI message exists
// yet.
func ValidatePersonaOrder(last persona.Persona, hasLast bool, next persona.Persona) ValidationResult {
	if !next.IsAI() {
		return invalid("persona order violation", fmt.Sprintf("%q is not an AI persona", next))
	}

	if !hasLast {
		if next != persona.Analyzer {
			return invalid(
				"persona order violation",
				fmt.Sprintf("discussion must open with Analyzer, got %s", next.DisplayName()),
			)
		}
		return valid("Analyzer opens the discussion")
	}

	if !last.IsAI() {
		return invalid("persona order violation", fmt.Sprintf("%q is not an AI persona", last))
	}

	if expected := persona.Next(last); next != expected {
		return invalid(
			"persona order violation",
			fmt.Sprintf("after %s the %s speaks, got %s",
				last.DisplayName(), expected.DisplayName(), next.DisplayName()),
		)
	}
	return valid(fmt.Sprintf("%s follows %s", next.DisplayName(), last.DisplayName()))
}

// ValidateMessageOrdering checks an arbitrary list of AI messages: turn
// numbers must be unique, form a gapless 1..n sequence, and each message's
// persona must agree with the persona its turn number implies.
func ValidateMessageOrdering(messages []ConversationMessage) ValidationResult {
	ai := make([]ConversationMessage, 0, len(messages))
	for _, m := range messages {
		if m.Persona.IsAI() {
			ai = append(ai, m)
		}
	}
	if len(ai) == 0 {
		return valid("no AI messages to validate")
	}

	sorted := make([]ConversationMessage, len(ai))
	copy(sorted, ai)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Turn < sorted[j].Turn })

	var errs []string
	for i, m := range sorted {
		if i > 0 && m.Turn == sorted[i-1].Turn {
			errs = append(errs, fmt.Sprintf("duplicate turn numbers: turn %d appears more than once", m.Turn))
			continue
		}
		if expected := i + 1; m.Turn != expected {
			errs = append(errs, fmt.Sprintf("gap in turn sequence: expected turn %d, found %d", expected, m.Turn))
		}
		if implied, _ := persona.FromTurn(m.Turn); m.Persona != implied {
			errs = append(errs, fmt.Sprintf("turn %d belongs to %s but message claims %s",
				m.Turn, implied.DisplayName(), m.Persona.DisplayName()))
		}
	}

	if len(errs) > 0 {
		return invalid("message ordering is invalid", errs...)
	}
	return valid("message ordering is valid")
}
