package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/persona"
	"github.com/trilogue/trilogue-backend/internal/providers"
	"github.com/trilogue/trilogue-backend/internal/repository"
)

// keepRecentRounds is how many of the newest rounds stay verbatim in
// context when older ones are compacted into a summary.
const keepRecentRounds = 2

// SummaryService compacts older rounds into summaries once the estimated
// context footprint crosses the configured threshold. Summaries supersede
// the rounds they cover; the rounds themselves are never deleted.
type SummaryService struct {
	summaries       repository.SummaryRepository
	registry        *providers.Registry
	defaultProvider string
	cfg             config.DialogueConfig
	log             *logrus.Entry
}

// NewSummaryService creates a summary service.
func NewSummaryService(summaries repository.SummaryRepository, registry *providers.Registry, defaultProvider string, cfg config.DialogueConfig) *SummaryService {
	return &SummaryService{
		summaries:       summaries,
		registry:        registry,
		defaultProvider: defaultProvider,
		cfg:             cfg,
		log:             logrus.WithField("component", "summary"),
	}
}

// MaybeCompact checks a freshly loaded context and, when it has grown past
// the threshold, summarizes the oldest uncompacted rounds. Failures are
// logged and swallowed: compaction is opportunistic and must never block a
// round.
func (s *SummaryService) MaybeCompact(ctx context.Context, discussionID string, dc *dialogue.DiscussionContext) {
	if s.cfg.SummaryThresholdTokens <= 0 || dc.TokenCount < s.cfg.SummaryThresholdTokens {
		return
	}

	entry, err := s.compact(ctx, dc)
	if err != nil {
		s.log.WithError(err).WithField("discussion_id", discussionID).Warn("summary compaction failed")
		return
	}
	if entry == nil {
		return
	}

	if err := s.summaries.Create(ctx, discussionID, *entry); err != nil {
		s.log.WithError(err).WithField("discussion_id", discussionID).Warn("could not store summary")
		return
	}

	s.log.WithFields(logrus.Fields{
		"discussion_id": discussionID,
		"at_round":      entry.AtRound,
		"tokens_before": entry.TokensBefore,
		"tokens_after":  entry.TokensAfter,
	}).Info("compacted discussion context")
}

func (s *SummaryService) compact(ctx context.Context, dc *dialogue.DiscussionContext) (*dialogue.SummaryEntry, error) {
	cutoff := 0
	if dc.CurrentSummary != nil {
		cutoff = dc.CurrentSummary.AtRound
	}

	// Candidates: complete rounds newer than the current summary, leaving
	// the most recent ones verbatim.
	var candidates []dialogue.DiscussionRound
	for i := range dc.Rounds {
		if dc.Rounds[i].Number > cutoff && dc.Rounds[i].IsComplete() {
			candidates = append(candidates, dc.Rounds[i])
		}
	}
	if len(candidates) <= keepRecentRounds {
		return nil, nil
	}
	candidates = candidates[:len(candidates)-keepRecentRounds]

	var transcript strings.Builder
	if dc.CurrentSummary != nil {
		fmt.Fprintf(&transcript, "Earlier summary:\n%s\n\n", dc.CurrentSummary.Text)
	}
	replaced := make([]int, 0, len(candidates))
	for i := range candidates {
		r := &candidates[i]
		replaced = append(replaced, r.Number)
		fmt.Fprintf(&transcript, "[Round %d]\n", r.Number)
		for _, p := range persona.AIPersonas {
			fmt.Fprintf(&transcript, "%s: %s\n", p.DisplayName(), r.Message(p).Content)
		}
		transcript.WriteString("\n")
	}

	provider := s.registry.Get(s.defaultProvider)
	if provider == nil {
		return nil, fmt.Errorf("provider %q is not registered", s.defaultProvider)
	}

	prompt := fmt.Sprintf(`Condense the following discussion rounds about %q into a brief summary (max 200 words) that preserves the key positions, decisions, and open disagreements, so the discussion can continue without the full transcript.

%s
Summary:`, dc.Topic, transcript.String())

	req := providers.StreamRequest{
		Messages:  []providers.Message{{Role: "user", Content: prompt}},
		MaxTokens: 500,
	}
	result, err := provider.Stream(ctx, req, nil)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, fmt.Errorf("summarizer returned empty text")
	}

	charsPerToken := s.cfg.CharsPerToken
	if charsPerToken <= 0 {
		charsPerToken = 3.5
	}

	return &dialogue.SummaryEntry{
		Text:           text,
		CreatedAtMs:    time.Now().UnixMilli(),
		AtRound:        replaced[len(replaced)-1],
		TokensBefore:   int(float64(transcript.Len()) / charsPerToken),
		TokensAfter:    int(float64(len(text)) / charsPerToken),
		ReplacesRounds: replaced,
	}, nil
}
