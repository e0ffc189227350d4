package dialogue

import (
	"fmt"

	"github.com/trilogue/trilogue-backend/internal/persona"
)

// ErrorKind classifies a round execution failure.
type ErrorKind string

const (
	// ErrStateViolation covers round-number mismatches and incomplete
	// persisted rounds; it indicates upstream crash-recovery inconsistency
	// and is never auto-repaired.
	ErrStateViolation ErrorKind = "state_violation"
	// ErrContextLoadFailure covers context loader failures and denied
	// access.
	ErrContextLoadFailure ErrorKind = "context_load_failure"
	// ErrPersonaExecutionFailure covers a generation call failing, an
	// unexpected persona identity, or an empty continuation.
	ErrPersonaExecutionFailure ErrorKind = "persona_execution_failure"
	// ErrFinalValidationFailure means a nominally successful round failed
	// completeness checks; this is a data-integrity bug, never coerced into
	// a valid round.
	ErrFinalValidationFailure ErrorKind = "final_validation_failure"
	// ErrPersistenceFailure means the sink rejected an already validated
	// round. The discussion stays at its last completed round.
	ErrPersistenceFailure ErrorKind = "persistence_failure"
)

// Error is a classified round execution failure. Step names the persona
// whose step failed, when one is responsible, so partial progress already
// shown to observers is explainable.
type Error struct {
	Kind ErrorKind
	Step persona.Persona
	Err  error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s at %s step: %v", e.Kind, e.Step.DisplayName(), e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func newStepError(kind ErrorKind, step persona.Persona, err error) *Error {
	return &Error{Kind: kind, Step: step, Err: err}
}
