package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/trilogue/trilogue-backend/internal/auth"
	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/database"
	"github.com/trilogue/trilogue-backend/internal/repository"
	"github.com/trilogue/trilogue-backend/internal/repository/postgres"
)

// createuser provisions an account directly against the database, for
// bootstrapping a fresh install without going through the signup endpoint.
func main() {
	var (
		email    = flag.String("email", "", "User email (required)")
		username = flag.String("username", "", "Username (required)")
		password = flag.String("password", "", "User password (required)")
	)
	flag.Parse()

	if *email == "" || *username == "" || *password == "" {
		flag.Usage()
		log.Fatal("email, username and password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	users := postgres.NewUserRepository(db.DB)
	user := &repository.User{
		Email:        *email,
		Username:     *username,
		PasswordHash: hash,
	}
	if err := users.Create(context.Background(), user); err != nil {
		log.Fatal("Failed to create user:", err)
	}

	fmt.Println("Created user:")
	fmt.Printf("  Email:    %s\n", user.Email)
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  ID:       %s\n", user.ID)
}
