package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trilogue/trilogue-backend/internal/persona"
)

// ContextLoader fetches everything known about a discussion, scoped by user
// for ownership enforcement.
type ContextLoader interface {
	LoadContext(ctx context.Context, discussionID, userID string) (*DiscussionContext, error)
}

// GenerationResult is the final outcome of one streamed generation call.
type GenerationResult struct {
	Persona      persona.Persona
	Text         string
	FinishReason string
}

// Generator produces one persona's streamed response to a prompt. Chunks
// are forwarded through onChunk in provider order before Generate returns.
type Generator interface {
	Generate(ctx context.Context, p persona.Persona, prompt string, onChunk func(delta string)) (*GenerationResult, error)
}

// PersistenceSink appends a completed round. The append must be atomic with
// respect to concurrent reads.
type PersistenceSink interface {
	AppendRound(ctx context.Context, discussionID, userID string, round DiscussionRound) error
}

// EventEmitter pushes progress notifications to observers. Emit is
// fire-and-forget and must never block the round's critical path.
type EventEmitter interface {
	Emit(discussionID, event string, payload interface{})
}

// Event names emitted while a round executes.
const (
	EventStepStarted    = "round:step_started"
	EventStepCompleted  = "round:step_completed"
	EventPersonaChunk   = "round:persona_chunk"
	EventRoundCompleted = "round:completed"
	EventRoundFailed    = "round:failed"
)

// StepEvent is the payload for step progress events.
type StepEvent struct {
	RoundNumber int             `json:"round_number"`
	Persona     persona.Persona `json:"persona"`
	Turn        int             `json:"turn"`
	Content     string          `json:"content,omitempty"`
}

// ChunkEvent is the payload for streamed persona output.
type ChunkEvent struct {
	RoundNumber int             `json:"round_number"`
	Persona     persona.Persona `json:"persona"`
	Delta       string          `json:"delta"`
}

// ExecuteRoundRequest names the inputs for one round execution.
type ExecuteRoundRequest struct {
	DiscussionID string
	UserID       string
	Topic        string
	IsFirstRound bool
	Files        []FileDescriptor
	RoundNumber  int
	UserAnswers  []UserAnswer
	Existing     []DiscussionRound
}

// RoundResult is what ExecuteRound hands back to the caller. Failures are
// captured here rather than returned as plain errors so the surrounding
// layer can decide user-facing messaging uniformly.
type RoundResult struct {
	Round   *DiscussionRound
	Context RoundStateContext
	Success bool
	Err     *Error
}

// Orchestrator drives one round through its persona steps: validate state,
// load context, run Analyzer/Solver/Moderator in order, validate the final
// round, persist, and emit. The caller must hold the discussion's advisory
// lock for the whole call; the orchestrator assumes rounds for one
// discussion are never interleaved.
type Orchestrator struct {
	loader ContextLoader
	gen    Generator
	sink   PersistenceSink
	events EventEmitter
	log    *logrus.Entry
}

// NewOrchestrator wires an orchestrator with its external collaborators.
func NewOrchestrator(loader ContextLoader, gen Generator, sink PersistenceSink, events EventEmitter) *Orchestrator {
	return &Orchestrator{
		loader: loader,
		gen:    gen,
		sink:   sink,
		events: events,
		log:    logrus.WithField("component", "orchestrator"),
	}
}

// ExecuteRound runs one complete round. It never partially persists: if any
// persona step fails, the sink sees no append and the discussion stays at
// its last completed round.
func (o *Orchestrator) ExecuteRound(ctx context.Context, req ExecuteRoundRequest) *RoundResult {
	log := o.log.WithFields(logrus.Fields{
		"discussion_id": req.DiscussionID,
		"round":         req.RoundNumber,
	})

	sc := NewRoundStateContext(req.RoundNumber)

	if res := ValidateRoundState(req.RoundNumber, req.Existing); !res.Valid {
		err := newError(ErrStateViolation, fmt.Errorf("%s: %s", res.Message, strings.Join(res.Errors, "; ")))
		log.WithError(err).Warn("round state validation failed")
		return o.failed(req, sc, err)
	}
	sc = AdvanceContext(sc) // INITIAL -> VALIDATING

	dc, err := o.loader.LoadContext(ctx, req.DiscussionID, req.UserID)
	if err != nil {
		werr := newError(ErrContextLoadFailure, fmt.Errorf("load context: %w", err))
		log.WithError(err).Warn("context load failed")
		return o.failed(req, sc, werr)
	}

	for {
		step, ok := NextPersona(sc.State)
		if !ok {
			break
		}

		msg, stepErr := o.runStep(ctx, req, dc, sc, step)
		if stepErr != nil {
			log.WithError(stepErr).WithField("persona", step).Warn("persona step failed")
			return o.failed(req, sc, stepErr)
		}

		sc = ApplyResponse(sc, step, *msg)
		if sc.State == StateError {
			return o.failed(req, sc, newStepError(ErrPersonaExecutionFailure, step, sc.Err))
		}

		o.events.Emit(req.DiscussionID, EventStepCompleted, StepEvent{
			RoundNumber: req.RoundNumber,
			Persona:     step,
			Turn:        msg.Turn,
			Content:     msg.Content,
		})
	}

	if res := ValidateFinalRound(sc); !res.Valid {
		err := newError(ErrFinalValidationFailure, fmt.Errorf("%s: %s", res.Message, strings.Join(res.Errors, "; ")))
		log.WithError(err).Error("final round validation failed")
		return o.failed(req, sc, err)
	}

	round := sc.Round()
	round.Timestamp = time.Now().UTC()
	round.SelectedOptions = selectedOptionIDs(req.UserAnswers)

	if err := o.sink.AppendRound(ctx, req.DiscussionID, req.UserID, round); err != nil {
		werr := newError(ErrPersistenceFailure, fmt.Errorf("append round: %w", err))
		log.WithError(err).Error("round persistence failed")
		return o.failed(req, sc, werr)
	}

	o.events.Emit(req.DiscussionID, EventRoundCompleted, round)
	log.Info("round completed")

	return &RoundResult{Round: &round, Context: sc, Success: true}
}

// runStep executes a single persona step: assemble the prompt from a fresh
// round view, run the streamed generation call, and check the returned
// persona identity.
func (o *Orchestrator) runStep(ctx context.Context, req ExecuteRoundRequest, dc *DiscussionContext, sc RoundStateContext, step persona.Persona) (*ConversationMessage, *Error) {
	o.events.Emit(req.DiscussionID, EventStepStarted, StepEvent{
		RoundNumber: req.RoundNumber,
		Persona:     step,
		Turn:        persona.TurnNumber(req.RoundNumber, step),
	})

	prompt := BuildPrompt(AssemblerInput{
		Topic:          dc.Topic,
		Messages:       dc.Messages,
		IsFirstMessage: req.IsFirstRound && step == persona.Analyzer,
		Persona:        step,
		Files:          req.Files,
		LegacySummary:  dc.LegacySummary,
		Rounds:         roundView(dc.Rounds, sc),
		CurrentSummary: dc.CurrentSummary,
		Summaries:      dc.Summaries,
		UserAnswers:    req.UserAnswers,
		CurrentRound:   req.RoundNumber,
	})

	onChunk := func(delta string) {
		o.events.Emit(req.DiscussionID, EventPersonaChunk, ChunkEvent{
			RoundNumber: req.RoundNumber,
			Persona:     step,
			Delta:       delta,
		})
	}

	result, err := o.gen.Generate(ctx, step, prompt, onChunk)
	if err != nil {
		return nil, newStepError(ErrPersonaExecutionFailure, step, err)
	}
	if result.Persona != step {
		return nil, newStepError(ErrPersonaExecutionFailure, step,
			fmt.Errorf("generator returned persona %q, expected %q", result.Persona, step))
	}
	if trimmedLen(result.Text) == 0 {
		return nil, newStepError(ErrPersonaExecutionFailure, step, fmt.Errorf("empty response"))
	}

	msg := NewMessage(req.DiscussionID, step, result.Text, persona.TurnNumber(req.RoundNumber, step))
	return &msg, nil
}

// roundView returns the prior rounds plus a fresh immutable view of the
// in-flight round, so each later persona sees the round exactly as it will
// appear in storage. Nothing is spliced into shared slices.
func roundView(prior []DiscussionRound, sc RoundStateContext) []DiscussionRound {
	view := make([]DiscussionRound, len(prior), len(prior)+1)
	copy(view, prior)

	current := sc.Round()
	if current.IsPartial() {
		view = append(view, current)
	}
	return view
}

func (o *Orchestrator) failed(req ExecuteRoundRequest, sc RoundStateContext, err *Error) *RoundResult {
	sc = Fail(sc, err)
	o.events.Emit(req.DiscussionID, EventRoundFailed, map[string]interface{}{
		"round_number": req.RoundNumber,
		"kind":         err.Kind,
		"step":         err.Step,
		"error":        err.Error(),
	})
	return &RoundResult{Context: sc, Success: false, Err: err}
}

func selectedOptionIDs(answers []UserAnswer) []string {
	var ids []string
	for _, a := range answers {
		ids = append(ids, a.OptionIDs...)
	}
	return ids
}
