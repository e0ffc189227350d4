package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/persona"
	"github.com/trilogue/trilogue-backend/internal/repository"
)

var (
	// ErrDiscussionNotFound is returned when the discussion does not exist
	// or the user does not own it.
	ErrDiscussionNotFound = errors.New("discussion not found or access denied")
)

// DiscussionService owns discussion lifecycle and implements
// dialogue.ContextLoader.
type DiscussionService struct {
	discussions repository.DiscussionRepository
	rounds      repository.RoundRepository
	summaries   repository.SummaryRepository
	cfg         config.DialogueConfig
}

// NewDiscussionService creates a discussion service.
func NewDiscussionService(
	discussions repository.DiscussionRepository,
	rounds repository.RoundRepository,
	summaries repository.SummaryRepository,
	cfg config.DialogueConfig,
) *DiscussionService {
	return &DiscussionService{
		discussions: discussions,
		rounds:      rounds,
		summaries:   summaries,
		cfg:         cfg,
	}
}

// Create starts a new discussion for a user.
func (s *DiscussionService) Create(ctx context.Context, userID uuid.UUID, topic string) (*repository.Discussion, error) {
	d := &repository.Discussion{UserID: userID, Topic: topic}
	if err := s.discussions.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create discussion: %w", err)
	}
	return d, nil
}

// Get returns one discussion, scoped by owner.
func (s *DiscussionService) Get(ctx context.Context, userID uuid.UUID, id string) (*repository.Discussion, error) {
	d, err := s.discussions.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDiscussionNotFound
	}
	return d, nil
}

// List returns a user's discussions.
func (s *DiscussionService) List(ctx context.Context, userID uuid.UUID) ([]*repository.Discussion, error) {
	return s.discussions.List(ctx, userID)
}

// Delete removes a discussion and everything under it.
func (s *DiscussionService) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.discussions.Delete(ctx, userID, id)
}

// MarkResolved flags a discussion as resolved.
func (s *DiscussionService) MarkResolved(ctx context.Context, userID uuid.UUID, id string) error {
	return s.discussions.Update(ctx, userID, id, map[string]interface{}{"status": "resolved"})
}

// Rounds returns all persisted rounds of a discussion, after an ownership
// check.
func (s *DiscussionService) Rounds(ctx context.Context, userID uuid.UUID, id string) ([]dialogue.DiscussionRound, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.rounds.ListByDiscussion(ctx, id)
}

// SaveAnswers records user-selected options on a round.
func (s *DiscussionService) SaveAnswers(ctx context.Context, userID uuid.UUID, id string, roundNumber int, selected []string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.rounds.SaveAnswers(ctx, id, roundNumber, selected)
}

// LoadContext implements dialogue.ContextLoader. Ownership is enforced
// here: a discussion the user does not own loads as ErrDiscussionNotFound.
func (s *DiscussionService) LoadContext(ctx context.Context, discussionID, userID string) (*dialogue.DiscussionContext, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	d, err := s.discussions.Get(ctx, uid, discussionID)
	if err != nil {
		return nil, fmt.Errorf("load discussion: %w", err)
	}
	if d == nil {
		return nil, ErrDiscussionNotFound
	}

	rounds, err := s.rounds.ListByDiscussion(ctx, discussionID)
	if err != nil {
		return nil, fmt.Errorf("load rounds: %w", err)
	}

	summaries, err := s.summaries.ListByDiscussion(ctx, discussionID)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	current, err := s.summaries.Latest(ctx, discussionID)
	if err != nil {
		return nil, fmt.Errorf("load current summary: %w", err)
	}

	dc := &dialogue.DiscussionContext{
		Topic:          d.Topic,
		Rounds:         rounds,
		Messages:       flattenMessages(rounds),
		Summaries:      summaries,
		CurrentSummary: current,
	}
	dc.TokenCount = estimateTokens(dc, s.cfg.CharsPerToken)
	return dc, nil
}

// flattenMessages derives the chronological message list from rounds.
func flattenMessages(rounds []dialogue.DiscussionRound) []dialogue.ConversationMessage {
	var messages []dialogue.ConversationMessage
	for i := range rounds {
		for _, p := range persona.AIPersonas {
			if m := rounds[i].Message(p); m != nil {
				messages = append(messages, *m)
			}
		}
	}
	return messages
}

// estimateTokens approximates the context footprint: summarized rounds are
// excluded, the surviving rounds and summary texts are counted.
func estimateTokens(dc *dialogue.DiscussionContext, charsPerToken float64) int {
	if charsPerToken <= 0 {
		charsPerToken = 3.5
	}

	cutoff := 0
	chars := 0
	if dc.CurrentSummary != nil {
		cutoff = dc.CurrentSummary.AtRound
		chars += len(dc.CurrentSummary.Text)
	}
	for i := range dc.Rounds {
		if dc.Rounds[i].Number <= cutoff {
			continue
		}
		for _, p := range persona.AIPersonas {
			if m := dc.Rounds[i].Message(p); m != nil {
				chars += len(m.Content)
			}
		}
	}
	chars += len(dc.Topic)

	return int(float64(chars) / charsPerToken)
}
