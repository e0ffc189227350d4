package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/persona"
)

func roundWithModerator(text string) *dialogue.DiscussionRound {
	a := dialogue.NewMessage("d1", persona.Analyzer, "analysis", 1)
	s := dialogue.NewMessage("d1", persona.Solver, "solution", 2)
	m := dialogue.NewMessage("d1", persona.Moderator, text, 3)
	return &dialogue.DiscussionRound{Number: 1, Analyzer: &a, Solver: &s, Moderator: &m}
}

func TestDetectResolution(t *testing.T) {
	assert.True(t, DetectResolution(roundWithModerator(
		"After three rounds, we have reached a consensus on the approach.")))
	assert.True(t, DetectResolution(roundWithModerator(
		"I believe THE DISCUSSION IS RESOLVED at this point.")))

	assert.False(t, DetectResolution(roundWithModerator(
		"We are closer, but important disagreements remain.")))
}

func TestDetectResolutionIgnoresOtherPersonas(t *testing.T) {
	r := roundWithModerator("More to discuss next round.")
	r.Analyzer.Content = "we have reached a consensus" // only the Moderator decides
	assert.False(t, DetectResolution(r))
}

func TestDetectResolutionNilSafety(t *testing.T) {
	assert.False(t, DetectResolution(nil))

	r := roundWithModerator("x")
	r.Moderator = nil
	assert.False(t, DetectResolution(r))
}
