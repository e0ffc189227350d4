package services

import (
	"strings"

	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/persona"
)

// resolutionMarkers are phrases a Moderator response uses to signal the
// discussion has reached a conclusion.
var resolutionMarkers = []string{
	"we have reached a consensus",
	"we have reached agreement",
	"the discussion is resolved",
	"this resolves the discussion",
	"no further discussion is needed",
	"we are in full agreement",
	"consider this matter settled",
}

// DetectResolution scans a completed round's Moderator response for
// consensus markers.
func DetectResolution(round *dialogue.DiscussionRound) bool {
	if round == nil {
		return false
	}
	msg := round.Message(persona.Moderator)
	if msg == nil {
		return false
	}

	text := strings.ToLower(msg.Content)
	for _, marker := range resolutionMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
