package services

import (
	"github.com/jmoiron/sqlx"

	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/providers"
	"github.com/trilogue/trilogue-backend/internal/repository"
	"github.com/trilogue/trilogue-backend/internal/repository/postgres"
)

// Services bundles everything the API layer needs.
type Services struct {
	Discussions  *DiscussionService
	Summaries    *SummaryService
	Events       *EventHub
	Generator    *GeneratorService
	Orchestrator *dialogue.Orchestrator
	Locks        dialogue.DiscussionLocker

	Users repository.UserRepository
}

// NewServices wires repositories, the event hub, the generator, and the
// orchestrator. When locker is nil an in-process lock manager is used.
func NewServices(db *sqlx.DB, registry *providers.Registry, cfg *config.Config, locker dialogue.DiscussionLocker) *Services {
	discussionRepo := postgres.NewDiscussionRepository(db)
	roundRepo := postgres.NewRoundRepository(db)
	summaryRepo := postgres.NewSummaryRepository(db)
	userRepo := postgres.NewUserRepository(db)

	discussions := NewDiscussionService(discussionRepo, roundRepo, summaryRepo, cfg.Dialogue)
	summaries := NewSummaryService(summaryRepo, registry, cfg.DefaultProvider, cfg.Dialogue)
	events := NewEventHub()
	generator := NewGeneratorService(registry, cfg.DefaultProvider, cfg.Dialogue)
	sink := NewRoundSink(roundRepo, discussionRepo)

	if locker == nil {
		locker = dialogue.NewLockManager()
	}

	return &Services{
		Discussions:  discussions,
		Summaries:    summaries,
		Events:       events,
		Generator:    generator,
		Orchestrator: dialogue.NewOrchestrator(discussions, generator, sink, events),
		Locks:        locker,
		Users:        userRepo,
	}
}
