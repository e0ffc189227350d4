package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/trilogue/trilogue-backend/internal/api/handlers"
	"github.com/trilogue/trilogue-backend/internal/api/middleware"
	"github.com/trilogue/trilogue-backend/internal/auth"
	"github.com/trilogue/trilogue-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, authService *auth.Service) {
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "trilogue-backend",
		})
	})

	// Authentication endpoints
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.SignupRateLimit(), handlers.Signup(authService))
	authGroup.Post("/login", middleware.AuthRateLimit(), handlers.Login(authService))

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(authService))
	protected.Get("/auth/me", handlers.GetCurrentUser(authService))

	// Discussion management
	protected.Post("/discussions", handlers.CreateDiscussion(svc))
	protected.Get("/discussions", handlers.GetDiscussions(svc))
	protected.Get("/discussions/:id", handlers.GetDiscussion(svc))
	protected.Delete("/discussions/:id", handlers.DeleteDiscussion(svc))
	protected.Get("/discussions/:id/rounds", handlers.GetDiscussionRounds(svc))

	// Round execution and follow-up answers
	protected.Post("/discussions/:id/rounds", middleware.RoundRateLimit(), handlers.ExecuteRound(svc))
	protected.Post("/discussions/:id/rounds/:number/answers", handlers.SaveAnswers(svc))

	// WebSocket route: round progress events, authenticated via query token.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			token = middleware.ExtractBearerToken(c.Get("Authorization"))
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required for WebSocket",
			})
		}
		claims, err := authService.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("allowed", true)
		return c.Next()
	})

	app.Get("/ws/discussions/:id", func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}
		discussionID := c.Params("id")

		// Ownership check before the upgrade; the socket itself only ever
		// sees events for this one discussion.
		if _, err := svc.Discussions.Get(c.Context(), userID, discussionID); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Discussion not found",
			})
		}

		c.Locals("discussion_id", discussionID)
		return websocket.New(handlers.DiscussionEvents(svc))(c)
	})
}
