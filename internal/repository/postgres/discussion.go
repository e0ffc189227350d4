package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trilogue/trilogue-backend/internal/repository"
)

// DiscussionRepository implements repository.DiscussionRepository using PostgreSQL
type DiscussionRepository struct {
	db *sqlx.DB
}

// NewDiscussionRepository creates a new PostgreSQL discussion repository
func NewDiscussionRepository(db *sqlx.DB) repository.DiscussionRepository {
	return &DiscussionRepository{db: db}
}

// Create creates a new discussion
func (r *DiscussionRepository) Create(ctx context.Context, d *repository.Discussion) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = "active"
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()

	query := `
		INSERT INTO discussions (id, user_id, topic, status, created_at, updated_at)
		VALUES (:id, :user_id, :topic, :status, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, d)
	return err
}

// Get retrieves a discussion by ID, scoped by owner
func (r *DiscussionRepository) Get(ctx context.Context, userID uuid.UUID, id string) (*repository.Discussion, error) {
	var d repository.Discussion
	query := `
		SELECT id, user_id, topic, status, created_at, updated_at
		FROM discussions
		WHERE id = $1 AND user_id = $2
	`

	err := r.db.GetContext(ctx, &d, query, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &d, nil
}

// List retrieves all discussions for a user
func (r *DiscussionRepository) List(ctx context.Context, userID uuid.UUID) ([]*repository.Discussion, error) {
	var discussions []*repository.Discussion
	query := `
		SELECT id, user_id, topic, status, created_at, updated_at
		FROM discussions
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	err := r.db.SelectContext(ctx, &discussions, query, userID)
	if err != nil {
		return nil, err
	}

	return discussions, nil
}

// Update updates a discussion
func (r *DiscussionRepository) Update(ctx context.Context, userID uuid.UUID, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	setClause := ""
	params := map[string]interface{}{"id": id, "user_id": userID}

	for key, value := range updates {
		if setClause != "" {
			setClause += ", "
		}
		setClause += key + " = :" + key
		params[key] = value
	}

	query := "UPDATE discussions SET " + setClause + " WHERE id = :id AND user_id = :user_id"
	_, err := r.db.NamedExecContext(ctx, query, params)
	return err
}

// Delete removes a discussion and its rounds
func (r *DiscussionRepository) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	query := `DELETE FROM discussions WHERE id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, id, userID)
	return err
}
