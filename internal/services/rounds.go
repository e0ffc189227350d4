package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/repository"
)

// RoundSink implements dialogue.PersistenceSink. Before the append it
// extracts any question block the Moderator produced, so the stored round
// carries its QuestionSet.
type RoundSink struct {
	rounds      repository.RoundRepository
	discussions repository.DiscussionRepository
}

// NewRoundSink creates a persistence sink over the round repository.
func NewRoundSink(rounds repository.RoundRepository, discussions repository.DiscussionRepository) *RoundSink {
	return &RoundSink{rounds: rounds, discussions: discussions}
}

// AppendRound implements dialogue.PersistenceSink.
func (s *RoundSink) AppendRound(ctx context.Context, discussionID, userID string, round dialogue.DiscussionRound) error {
	if round.Questions == nil && round.Moderator != nil {
		round.Questions = ParseQuestionSet(round.Moderator.Content)
	}

	if err := s.rounds.Append(ctx, discussionID, round); err != nil {
		return fmt.Errorf("append round: %w", err)
	}

	if uid, err := uuid.Parse(userID); err == nil {
		if err := s.discussions.Update(ctx, uid, discussionID, map[string]interface{}{"updated_at": time.Now()}); err != nil {
			logrus.WithError(err).Warn("could not bump discussion timestamp")
		}
	}
	return nil
}

// ParseQuestionSet extracts the Moderator's fenced json question block,
// when one exists. Malformed blocks are ignored rather than failing the
// round.
func ParseQuestionSet(content string) *dialogue.QuestionSet {
	start := strings.Index(content, "```json")
	if start < 0 {
		return nil
	}
	rest := content[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return nil
	}

	var qs dialogue.QuestionSet
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &qs); err != nil {
		return nil
	}
	if len(qs.Questions) == 0 {
		return nil
	}
	return &qs
}
