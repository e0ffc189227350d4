package dialogue

import (
	"fmt"

	"github.com/trilogue/trilogue-backend/internal/persona"
)

// RoundState names one stage of a round's execution.
type RoundState string

const (
	StateInitial             RoundState = "INITIAL"
	StateValidating          RoundState = "VALIDATING"
	StateProcessingAnalyzer  RoundState = "PROCESSING_ANALYZER"
	StateProcessingSolver    RoundState = "PROCESSING_SOLVER"
	StateProcessingModerator RoundState = "PROCESSING_MODERATOR"
	StateComplete            RoundState = "COMPLETE"
	StateError               RoundState = "ERROR"
)

// transitions is the total transition table. COMPLETE and ERROR absorb.
var transitions = map[RoundState]RoundState{
	StateInitial:             StateValidating,
	StateValidating:          StateProcessingAnalyzer,
	StateProcessingAnalyzer:  StateProcessingSolver,
	StateProcessingSolver:    StateProcessingModerator,
	StateProcessingModerator: StateComplete,
	StateComplete:            StateComplete,
	StateError:               StateError,
}

// Advance returns the state that follows s. Unknown states go to ERROR.
func Advance(s RoundState) RoundState {
	next, ok := transitions[s]
	if !ok {
		return StateError
	}
	return next
}

// NextPersona returns the persona that should execute from state s, or
// false when the round has no further persona steps.
func NextPersona(s RoundState) (persona.Persona, bool) {
	switch s {
	case StateInitial, StateValidating:
		return persona.Analyzer, true
	case StateProcessingAnalyzer:
		return persona.Solver, true
	case StateProcessingSolver:
		return persona.Moderator, true
	}
	return "", false
}

// RoundStateContext tracks one in-flight round. It is owned exclusively by
// a single orchestrator invocation and discarded when the round completes
// or fails.
type RoundStateContext struct {
	State       RoundState           `json:"state"`
	RoundNumber int                  `json:"round_number"`
	Analyzer    *ConversationMessage `json:"analyzer,omitempty"`
	Solver      *ConversationMessage `json:"solver,omitempty"`
	Moderator   *ConversationMessage `json:"moderator,omitempty"`
	Err         error                `json:"-"`
}

// NewRoundStateContext starts a fresh context in INITIAL for roundNumber.
func NewRoundStateContext(roundNumber int) RoundStateContext {
	return RoundStateContext{State: StateInitial, RoundNumber: roundNumber}
}

// terminal reports whether no further transitions may change the context.
func (c RoundStateContext) terminal() bool {
	return c.State == StateComplete || c.State == StateError
}

// AdvanceContext moves the context one step along the transition table.
func AdvanceContext(c RoundStateContext) RoundStateContext {
	if c.terminal() {
		return c
	}
	c.State = Advance(c.State)
	return c
}

// ApplyResponse stores a persona's completed response in its slot and
// advances the state. An unrecognized persona forces ERROR. Terminal
// contexts are returned unchanged.
func ApplyResponse(c RoundStateContext, p persona.Persona, msg ConversationMessage) RoundStateContext {
	if c.terminal() {
		return c
	}

	switch p {
	case persona.Analyzer:
		c.Analyzer = &msg
		c.State = StateProcessingAnalyzer
	case persona.Solver:
		c.Solver = &msg
		c.State = StateProcessingSolver
	case persona.Moderator:
		c.Moderator = &msg
		c.State = StateComplete
	default:
		c.State = StateError
		c.Err = fmt.Errorf("unrecognized persona %q", p)
	}
	return c
}

// Fail moves the context into the terminal ERROR state with err attached.
func Fail(c RoundStateContext, err error) RoundStateContext {
	if c.terminal() {
		return c
	}
	c.State = StateError
	c.Err = err
	return c
}

// Round assembles the (possibly partial) round held by the context.
func (c RoundStateContext) Round() DiscussionRound {
	return DiscussionRound{
		Number:    c.RoundNumber,
		Analyzer:  c.Analyzer,
		Solver:    c.Solver,
		Moderator: c.Moderator,
	}
}

// ValidateFinalRound checks that the context reached COMPLETE with all
// three responses present, then delegates to the completeness validator
// before the round may be persisted.
func ValidateFinalRound(c RoundStateContext) ValidationResult {
	if c.State != StateComplete {
		return invalid("round is not complete", fmt.Sprintf("state is %s, expected %s", c.State, StateComplete))
	}
	if c.Analyzer == nil || c.Solver == nil || c.Moderator == nil {
		return invalid("round is not complete", "one or more persona responses are missing")
	}
	return ValidateCompleteness(c.Round())
}
