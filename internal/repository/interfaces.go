package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trilogue/trilogue-backend/internal/dialogue"
)

// Discussion is one user-owned discussion.
type Discussion struct {
	ID        string    `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Topic     string    `db:"topic"`
	Status    string    `db:"status"` // "active" or "resolved"
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// User is an authenticated account.
type User struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// DiscussionRepository defines discussion storage operations. All reads
// are scoped by user id for ownership enforcement.
type DiscussionRepository interface {
	Create(ctx context.Context, d *Discussion) error
	Get(ctx context.Context, userID uuid.UUID, id string) (*Discussion, error)
	List(ctx context.Context, userID uuid.UUID) ([]*Discussion, error)
	Update(ctx context.Context, userID uuid.UUID, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}

// RoundRepository defines round storage operations. Append must be atomic:
// a reader never observes a partially written round.
type RoundRepository interface {
	Append(ctx context.Context, discussionID string, round dialogue.DiscussionRound) error
	ListByDiscussion(ctx context.Context, discussionID string) ([]dialogue.DiscussionRound, error)
	SaveAnswers(ctx context.Context, discussionID string, roundNumber int, selected []string) error
}

// SummaryRepository defines summary storage operations. Summaries are
// append-only and strictly ordered by the round they were created at.
type SummaryRepository interface {
	Create(ctx context.Context, discussionID string, s dialogue.SummaryEntry) error
	ListByDiscussion(ctx context.Context, discussionID string) ([]dialogue.SummaryEntry, error)
	Latest(ctx context.Context, discussionID string) (*dialogue.SummaryEntry, error)
}

// UserRepository defines user account storage operations.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}
