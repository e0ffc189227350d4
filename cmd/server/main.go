package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/trilogue/trilogue-backend/internal/api"
	"github.com/trilogue/trilogue-backend/internal/auth"
	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/database"
	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/providers"
	"github.com/trilogue/trilogue-backend/internal/providers/factory"
	"github.com/trilogue/trilogue-backend/internal/repository/postgres"
	"github.com/trilogue/trilogue-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Initialize provider registry from config
	registry := providers.NewRegistry()
	for id, pcfg := range cfg.Providers {
		provider, err := factory.CreateProvider(id, pcfg)
		if err != nil {
			logrus.WithError(err).WithField("provider", id).Warn("skipping provider")
			continue
		}
		registry.Register(id, provider)
	}
	if !registry.Has(cfg.DefaultProvider) {
		log.Fatalf("Default provider %q is not configured", cfg.DefaultProvider)
	}

	// Auth service
	jwtSecret := os.Getenv("TRILOGUE_JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "change-me-in-production" // Default for development
		log.Println("WARNING: Using default JWT secret. Set TRILOGUE_JWT_SECRET in production!")
	}
	userRepo := postgres.NewUserRepository(db.DB)
	authService := auth.NewService(userRepo, auth.NewJWTService(jwtSecret, "trilogue-backend"))

	// Discussion locks: advisory locks in Postgres so the one-round-at-a-time
	// guarantee holds across instances. Falls back to in-process locks.
	var locker dialogue.DiscussionLocker
	pgLocks, err := database.NewPgLockManager(cfg.Database)
	if err != nil {
		logrus.WithError(err).Warn("advisory locks unavailable, using in-process locks")
	} else {
		defer pgLocks.Close()
		locker = pgLocks
	}

	// Initialize services
	svc := services.NewServices(db.DB, registry, cfg, locker)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Trilogue Backend",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     getOrigins(),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Setup routes
	api.SetupRoutes(app, svc, authService)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Trilogue Backend starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func getOrigins() string {
	origins := os.Getenv("TRILOGUE_CORS_ORIGINS")
	if origins == "" {
		return "http://localhost:1420,http://localhost:5173,http://localhost:3000"
	}
	return origins
}
