package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/trilogue/trilogue-backend/internal/api/middleware"
	"github.com/trilogue/trilogue-backend/internal/services"
)

// CreateDiscussionRequest represents a create discussion request
type CreateDiscussionRequest struct {
	Topic string `json:"topic" validate:"required"`
}

// SaveAnswersRequest carries the option IDs a user selected on a round's
// question set.
type SaveAnswersRequest struct {
	Selected []string `json:"selected"`
}

// CreateDiscussion starts a new discussion
func CreateDiscussion(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		var req CreateDiscussionRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		if req.Topic == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Topic is required",
			})
		}

		d, err := svc.Discussions.Create(c.Context(), userID, req.Topic)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not create discussion",
			})
		}
		return c.Status(fiber.StatusCreated).JSON(d)
	}
}

// GetDiscussions lists the user's discussions
func GetDiscussions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		list, err := svc.Discussions.List(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not list discussions",
			})
		}
		return c.JSON(fiber.Map{"discussions": list})
	}
}

// GetDiscussion returns one discussion
func GetDiscussion(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		d, err := svc.Discussions.Get(c.Context(), userID, c.Params("id"))
		if err != nil {
			return notFoundOrInternal(c, err)
		}
		return c.JSON(d)
	}
}

// DeleteDiscussion removes a discussion and its rounds
func DeleteDiscussion(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		if err := svc.Discussions.Delete(c.Context(), userID, c.Params("id")); err != nil {
			return notFoundOrInternal(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetDiscussionRounds returns all persisted rounds of a discussion
func GetDiscussionRounds(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		rounds, err := svc.Discussions.Rounds(c.Context(), userID, c.Params("id"))
		if err != nil {
			return notFoundOrInternal(c, err)
		}
		return c.JSON(fiber.Map{"rounds": rounds})
	}
}

// SaveAnswers records the user's selected options on a round
func SaveAnswers(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		roundNumber, err := c.ParamsInt("number")
		if err != nil || roundNumber < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid round number",
			})
		}

		var req SaveAnswersRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if err := svc.Discussions.SaveAnswers(c.Context(), userID, c.Params("id"), roundNumber, req.Selected); err != nil {
			return notFoundOrInternal(c, err)
		}
		return c.JSON(fiber.Map{"saved": true})
	}
}

func notFoundOrInternal(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrDiscussionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Discussion not found",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal error",
	})
}
