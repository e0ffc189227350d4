package dialogue

import (
	"time"

	"github.com/trilogue/trilogue-backend/internal/persona"
)

// ConversationMessage is one persona's utterance within a discussion.
// Messages are created when a generation call completes and are never
// mutated afterwards.
type ConversationMessage struct {
	ID           int64           `json:"id,omitempty"`
	DiscussionID string          `json:"discussion_id,omitempty"`
	Persona      persona.Persona `json:"persona"`
	Content      string          `json:"content"`
	Turn         int             `json:"turn"`
	Timestamp    time.Time       `json:"timestamp"`
	CreatedAtMs  int64           `json:"created_at_ms"`
}

// NewMessage builds an immutable message stamped with the current time.
func NewMessage(discussionID string, p persona.Persona, content string, turn int) ConversationMessage {
	now := time.Now().UTC()
	return ConversationMessage{
		DiscussionID: discussionID,
		Persona:      p,
		Content:      content,
		Turn:         turn,
		Timestamp:    now,
		CreatedAtMs:  now.UnixMilli(),
	}
}

// Question is a single question the Moderator may pose to the user.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Option is one selectable answer to a Question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionSet groups the questions attached to a round.
type QuestionSet struct {
	Questions []Question `json:"questions"`
}

// UserAnswer pairs a question with the option ids the user selected.
type UserAnswer struct {
	QuestionID string   `json:"question_id"`
	OptionIDs  []string `json:"option_ids"`
}

// DiscussionRound is one complete Analyzer -> Solver -> Moderator cycle.
// A round only leaves orchestration in a complete state; incomplete rounds
// exist solely inside an in-flight RoundStateContext.
type DiscussionRound struct {
	Number          int                  `json:"number"`
	Analyzer        *ConversationMessage `json:"analyzer,omitempty"`
	Solver          *ConversationMessage `json:"solver,omitempty"`
	Moderator       *ConversationMessage `json:"moderator,omitempty"`
	Timestamp       time.Time            `json:"timestamp"`
	Questions       *QuestionSet         `json:"questions,omitempty"`
	SelectedOptions []string             `json:"selected_options,omitempty"`
}

// Message returns the slot for p, or nil for User or an unfilled slot.
func (r *DiscussionRound) Message(p persona.Persona) *ConversationMessage {
	switch p {
	case persona.Analyzer:
		return r.Analyzer
	case persona.Solver:
		return r.Solver
	case persona.Moderator:
		return r.Moderator
	}
	return nil
}

// IsComplete reports whether all three persona slots carry content.
func (r *DiscussionRound) IsComplete() bool {
	return hasContent(r.Analyzer) && hasContent(r.Solver) && hasContent(r.Moderator)
}

// IsPartial reports whether the round has at least one filled slot but is
// not complete. A persisted round in this state indicates a crash mid-round.
func (r *DiscussionRound) IsPartial() bool {
	if r.IsComplete() {
		return false
	}
	return hasContent(r.Analyzer) || hasContent(r.Solver) || hasContent(r.Moderator)
}

func hasContent(m *ConversationMessage) bool {
	return m != nil && trimmedLen(m.Content) > 0
}

// SummaryEntry condenses one or more prior rounds into a short text.
// Context assembly includes only rounds strictly newer than AtRound once a
// current summary exists.
type SummaryEntry struct {
	Text           string `json:"text"`
	CreatedAtMs    int64  `json:"created_at_ms"`
	AtRound        int    `json:"at_round"`
	TokensBefore   int    `json:"tokens_before"`
	TokensAfter    int    `json:"tokens_after"`
	ReplacesRounds []int  `json:"replaces_rounds"`
}

// FileDescriptor describes a user-attached file. Only metadata is ever
// rendered into prompts, never raw bytes.
type FileDescriptor struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// DiscussionContext is everything the context loader returns for a
// discussion: the topic, the surviving rounds, summaries, and an estimate
// of the token footprint of the whole conversation.
type DiscussionContext struct {
	Topic          string                `json:"topic"`
	Rounds         []DiscussionRound     `json:"rounds"`
	Messages       []ConversationMessage `json:"messages"`
	Summaries      []SummaryEntry        `json:"summaries"`
	CurrentSummary *SummaryEntry         `json:"current_summary,omitempty"`
	LegacySummary  string                `json:"legacy_summary,omitempty"`
	TokenCount     int                   `json:"token_count"`
}
