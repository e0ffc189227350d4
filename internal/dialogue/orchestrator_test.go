package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trilogue/trilogue-backend/internal/persona"
)

type fakeLoader struct {
	dc  *DiscussionContext
	err error
}

func (f *fakeLoader) LoadContext(ctx context.Context, discussionID, userID string) (*DiscussionContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dc, nil
}

// fakeGenerator answers each persona with a canned response and records the
// prompts it was asked to answer.
type fakeGenerator struct {
	mu        sync.Mutex
	prompts   map[persona.Persona]string
	responses map[persona.Persona]string
	failAt    persona.Persona
	failErr   error
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		prompts: make(map[persona.Persona]string),
		responses: map[persona.Persona]string{
			persona.Analyzer:  "The question breaks down into scope and constraints.",
			persona.Solver:    "Concretely, start with time-boxing and measure throughput.",
			persona.Moderator: "Both views agree on measurement; next round should test it.",
		},
	}
}

func (f *fakeGenerator) Generate(ctx context.Context, p persona.Persona, prompt string, onChunk func(string)) (*GenerationResult, error) {
	f.mu.Lock()
	f.prompts[p] = prompt
	f.mu.Unlock()

	if f.failAt == p {
		return nil, f.failErr
	}

	text := f.responses[p]
	if onChunk != nil {
		for _, word := range strings.SplitAfter(text, " ") {
			onChunk(word)
		}
	}
	return &GenerationResult{Persona: p, Text: text, FinishReason: "stop"}, nil
}

type fakeSink struct {
	mu       sync.Mutex
	appended []DiscussionRound
	err      error
}

func (f *fakeSink) AppendRound(ctx context.Context, discussionID, userID string, round DiscussionRound) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.appended = append(f.appended, round)
	f.mu.Unlock()
	return nil
}

type recordedEvent struct {
	name    string
	payload interface{}
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEmitter) Emit(discussionID, event string, payload interface{}) {
	f.mu.Lock()
	f.events = append(f.events, recordedEvent{name: event, payload: payload})
	f.mu.Unlock()
}

func (f *fakeEmitter) named(name string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func newTestOrchestrator(loader *fakeLoader, gen *fakeGenerator, sink *fakeSink, emitter *fakeEmitter) *Orchestrator {
	return NewOrchestrator(loader, gen, sink, emitter)
}

func TestExecuteRoundFirstRound(t *testing.T) {
	loader := &fakeLoader{dc: &DiscussionContext{Topic: "How to improve productivity?"}}
	gen := newFakeGenerator()
	sink := &fakeSink{}
	emitter := &fakeEmitter{}

	o := newTestOrchestrator(loader, gen, sink, emitter)
	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1",
		UserID:       "u1",
		Topic:        "How to improve productivity?",
		IsFirstRound: true,
		RoundNumber:  1,
	})

	require.True(t, result.Success)
	require.NotNil(t, result.Round)
	assert.True(t, result.Round.IsComplete())
	assert.Equal(t, 1, result.Round.Number)
	assert.Equal(t, StateComplete, result.Context.State)

	// Turn arithmetic for round 1.
	assert.Equal(t, 1, result.Round.Analyzer.Turn)
	assert.Equal(t, 2, result.Round.Solver.Turn)
	assert.Equal(t, 3, result.Round.Moderator.Turn)

	// Exactly one persisted round, identical to the returned one.
	require.Len(t, sink.appended, 1)
	assert.Equal(t, result.Round.Number, sink.appended[0].Number)

	// Exactly three step-completed events, in persona order.
	completed := emitter.named(EventStepCompleted)
	require.Len(t, completed, 3)
	order := make([]persona.Persona, 0, 3)
	for _, e := range completed {
		order = append(order, e.payload.(StepEvent).Persona)
	}
	assert.Equal(t, []persona.Persona{persona.Analyzer, persona.Solver, persona.Moderator}, order)

	assert.Len(t, emitter.named(EventRoundCompleted), 1)
	assert.Empty(t, emitter.named(EventRoundFailed))

	// The Analyzer opened; later personas saw the in-flight round.
	assert.Contains(t, gen.prompts[persona.Analyzer], "You are opening this discussion")
	assert.Contains(t, gen.prompts[persona.Solver], "[Round 1 — in progress]")
	assert.Contains(t, gen.prompts[persona.Moderator], "Solver: Concretely, start with time-boxing")
}

func TestExecuteRoundStateViolation(t *testing.T) {
	loader := &fakeLoader{dc: &DiscussionContext{Topic: "t"}}
	gen := newFakeGenerator()
	sink := &fakeSink{}
	emitter := &fakeEmitter{}

	o := newTestOrchestrator(loader, gen, sink, emitter)
	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1",
		UserID:       "u1",
		RoundNumber:  3, // no rounds exist yet
	})

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, ErrStateViolation, result.Err.Kind)
	assert.Equal(t, StateError, result.Context.State)
	assert.Empty(t, sink.appended)
	assert.Empty(t, gen.prompts)
	assert.Len(t, emitter.named(EventRoundFailed), 1)
}

func TestExecuteRoundContextLoadFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("connection refused")}
	o := newTestOrchestrator(loader, newFakeGenerator(), &fakeSink{}, &fakeEmitter{})

	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1", UserID: "u1", RoundNumber: 1,
	})

	require.False(t, result.Success)
	assert.Equal(t, ErrContextLoadFailure, result.Err.Kind)
}

func TestExecuteRoundNoPartialPersistence(t *testing.T) {
	loader := &fakeLoader{dc: &DiscussionContext{Topic: "t"}}
	gen := newFakeGenerator()
	gen.failAt = persona.Solver
	gen.failErr = errors.New("provider timeout")
	sink := &fakeSink{}
	emitter := &fakeEmitter{}

	o := newTestOrchestrator(loader, gen, sink, emitter)
	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1", UserID: "u1", IsFirstRound: true, RoundNumber: 1,
	})

	require.False(t, result.Success)
	assert.Equal(t, ErrPersonaExecutionFailure, result.Err.Kind)
	assert.Equal(t, persona.Solver, result.Err.Step)

	// The Analyzer step ran, but nothing was persisted.
	assert.Len(t, emitter.named(EventStepCompleted), 1)
	assert.Empty(t, sink.appended)
	assert.Len(t, emitter.named(EventRoundFailed), 1)
}

func TestExecuteRoundPersistenceFailure(t *testing.T) {
	loader := &fakeLoader{dc: &DiscussionContext{Topic: "t"}}
	sink := &fakeSink{err: errors.New("disk full")}
	emitter := &fakeEmitter{}

	o := newTestOrchestrator(loader, newFakeGenerator(), sink, emitter)
	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1", UserID: "u1", IsFirstRound: true, RoundNumber: 1,
	})

	require.False(t, result.Success)
	assert.Equal(t, ErrPersistenceFailure, result.Err.Kind)
	assert.Empty(t, emitter.named(EventRoundCompleted))
}

func TestExecuteRoundRejectsWrongPersonaIdentity(t *testing.T) {
	loader := &fakeLoader{dc: &DiscussionContext{Topic: "t"}}
	gen := newFakeGenerator()
	sink := &fakeSink{}

	o := NewOrchestrator(loader, personaConfuser{gen}, sink, &fakeEmitter{})
	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1", UserID: "u1", IsFirstRound: true, RoundNumber: 1,
	})

	require.False(t, result.Success)
	assert.Equal(t, ErrPersonaExecutionFailure, result.Err.Kind)
	assert.Empty(t, sink.appended)
}

// personaConfuser wraps a generator and mislabels every result.
type personaConfuser struct {
	inner Generator
}

func (p personaConfuser) Generate(ctx context.Context, pers persona.Persona, prompt string, onChunk func(string)) (*GenerationResult, error) {
	res, err := p.inner.Generate(ctx, pers, prompt, onChunk)
	if err != nil {
		return nil, err
	}
	res.Persona = persona.Next(pers)
	return res, nil
}

func TestExecuteRoundSecondRoundSeesHistory(t *testing.T) {
	existing := []DiscussionRound{completeRound(1)}
	loader := &fakeLoader{dc: &DiscussionContext{
		Topic:    "How to improve productivity?",
		Rounds:   existing,
		Messages: flattenForTest(existing),
	}}
	gen := newFakeGenerator()
	sink := &fakeSink{}

	o := newTestOrchestrator(loader, gen, sink, &fakeEmitter{})
	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1",
		UserID:       "u1",
		RoundNumber:  2,
		Existing:     existing,
	})

	require.True(t, result.Success)
	assert.Equal(t, 4, result.Round.Analyzer.Turn)
	assert.Equal(t, 6, result.Round.Moderator.Turn)

	assert.Contains(t, gen.prompts[persona.Analyzer], "This is Exchange 4.")
	assert.Contains(t, gen.prompts[persona.Solver], "This is Exchange 5.")
	assert.Contains(t, gen.prompts[persona.Moderator], "This is Exchange 6.")
	assert.Contains(t, gen.prompts[persona.Analyzer], "[Round 1]")
}

func TestExecuteRoundStreamsChunks(t *testing.T) {
	loader := &fakeLoader{dc: &DiscussionContext{Topic: "t"}}
	gen := newFakeGenerator()
	emitter := &fakeEmitter{}

	o := newTestOrchestrator(loader, gen, &fakeSink{}, emitter)
	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1", UserID: "u1", IsFirstRound: true, RoundNumber: 1,
	})
	require.True(t, result.Success)

	chunks := emitter.named(EventPersonaChunk)
	require.NotEmpty(t, chunks)

	// Reassembling the Analyzer's chunks yields its stored content.
	var b strings.Builder
	for _, e := range chunks {
		ce := e.payload.(ChunkEvent)
		if ce.Persona == persona.Analyzer {
			b.WriteString(ce.Delta)
		}
	}
	assert.Equal(t, result.Round.Analyzer.Content, b.String())
}

func flattenForTest(rounds []DiscussionRound) []ConversationMessage {
	var out []ConversationMessage
	for i := range rounds {
		for _, p := range persona.AIPersonas {
			if m := rounds[i].Message(p); m != nil {
				out = append(out, *m)
			}
		}
	}
	return out
}

func TestSelectedOptionsCarriedOntoRound(t *testing.T) {
	loader := &fakeLoader{dc: &DiscussionContext{Topic: "t"}}
	sink := &fakeSink{}

	o := newTestOrchestrator(loader, newFakeGenerator(), sink, &fakeEmitter{})
	result := o.ExecuteRound(context.Background(), ExecuteRoundRequest{
		DiscussionID: "d1",
		UserID:       "u1",
		IsFirstRound: true,
		RoundNumber:  1,
		UserAnswers: []UserAnswer{
			{QuestionID: "q1", OptionIDs: []string{"a", "b"}},
			{QuestionID: "q2", OptionIDs: []string{"c"}},
		},
	})

	require.True(t, result.Success)
	assert.Equal(t, []string{"a", "b", "c"}, result.Round.SelectedOptions)
}
