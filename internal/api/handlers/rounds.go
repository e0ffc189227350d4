package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trilogue/trilogue-backend/internal/api/middleware"
	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/services"
)

// ExecuteRoundRequest represents a request to run the next round
type ExecuteRoundRequest struct {
	Files   []dialogue.FileDescriptor `json:"files,omitempty"`
	Answers []dialogue.UserAnswer     `json:"answers,omitempty"`
}

// ExecuteRoundResponse represents the outcome of a round execution
type ExecuteRoundResponse struct {
	Round    *dialogue.DiscussionRound `json:"round,omitempty"`
	Resolved bool                      `json:"resolved"`
}

// ExecuteRound runs the next Analyzer/Solver/Moderator round of a
// discussion. Only one round may run per discussion at a time; concurrent
// requests get 409.
func ExecuteRound(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}
		discussionID := c.Params("id")

		var req ExecuteRoundRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid request body",
				})
			}
		}

		d, err := svc.Discussions.Get(c.Context(), userID, discussionID)
		if err != nil {
			return notFoundOrInternal(c, err)
		}
		if d.Status == "resolved" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Discussion is already resolved",
			})
		}

		release, ok := svc.Locks.TryAcquire(discussionID)
		if !ok {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A round is already running for this discussion",
			})
		}
		defer release()

		existing, err := svc.Discussions.Rounds(c.Context(), userID, discussionID)
		if err != nil {
			return notFoundOrInternal(c, err)
		}

		result := svc.Orchestrator.ExecuteRound(c.Context(), dialogue.ExecuteRoundRequest{
			DiscussionID: discussionID,
			UserID:       userID.String(),
			Topic:        d.Topic,
			IsFirstRound: len(existing) == 0,
			Files:        req.Files,
			RoundNumber:  len(existing) + 1,
			UserAnswers:  req.Answers,
			Existing:     existing,
		})
		if !result.Success {
			return c.Status(roundErrorStatus(result.Err)).JSON(fiber.Map{
				"error": result.Err.Error(),
				"kind":  result.Err.Kind,
			})
		}

		// Post-round housekeeping: compact old rounds when the context has
		// grown, and mark the discussion resolved when the Moderator says so.
		if dc, err := svc.Discussions.LoadContext(c.Context(), discussionID, userID.String()); err == nil {
			svc.Summaries.MaybeCompact(c.Context(), discussionID, dc)
		}

		resolved := services.DetectResolution(result.Round)
		if resolved {
			if err := svc.Discussions.MarkResolved(c.Context(), userID, discussionID); err != nil {
				resolved = false
			}
		}

		return c.JSON(ExecuteRoundResponse{
			Round:    result.Round,
			Resolved: resolved,
		})
	}
}

func roundErrorStatus(err *dialogue.Error) int {
	switch err.Kind {
	case dialogue.ErrStateViolation:
		return fiber.StatusConflict
	case dialogue.ErrContextLoadFailure:
		return fiber.StatusNotFound
	case dialogue.ErrPersonaExecutionFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
