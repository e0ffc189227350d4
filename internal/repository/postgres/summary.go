package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/repository"
)

// SummaryRepository implements repository.SummaryRepository using PostgreSQL
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new PostgreSQL summary repository
func NewSummaryRepository(db *sqlx.DB) repository.SummaryRepository {
	return &SummaryRepository{db: db}
}

type summaryRow struct {
	DiscussionID   string    `db:"discussion_id"`
	Text           string    `db:"summary_text"`
	AtRound        int       `db:"at_round"`
	TokensBefore   int       `db:"tokens_before"`
	TokensAfter    int       `db:"tokens_after"`
	ReplacesRounds []byte    `db:"replaces_rounds"`
	CreatedAtMs    int64     `db:"created_at_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

// Create stores a new summary entry
func (r *SummaryRepository) Create(ctx context.Context, discussionID string, s dialogue.SummaryEntry) error {
	replaces, err := json.Marshal(s.ReplacesRounds)
	if err != nil {
		return fmt.Errorf("marshal replaced rounds: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO summaries (discussion_id, summary_text, at_round, tokens_before, tokens_after, replaces_rounds, created_at_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, discussionID, s.Text, s.AtRound, s.TokensBefore, s.TokensAfter, replaces, s.CreatedAtMs, time.UnixMilli(s.CreatedAtMs))
	return err
}

// ListByDiscussion returns all summaries ordered by the round they cover
func (r *SummaryRepository) ListByDiscussion(ctx context.Context, discussionID string) ([]dialogue.SummaryEntry, error) {
	var rows []summaryRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT discussion_id, summary_text, at_round, tokens_before, tokens_after, replaces_rounds, created_at_ms, created_at
		FROM summaries
		WHERE discussion_id = $1
		ORDER BY at_round ASC
	`, discussionID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dialogue.SummaryEntry, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, row.toEntry())
	}
	return summaries, nil
}

// Latest returns the most recent summary, or nil when none exists
func (r *SummaryRepository) Latest(ctx context.Context, discussionID string) (*dialogue.SummaryEntry, error) {
	var row summaryRow
	err := r.db.GetContext(ctx, &row, `
		SELECT discussion_id, summary_text, at_round, tokens_before, tokens_after, replaces_rounds, created_at_ms, created_at
		FROM summaries
		WHERE discussion_id = $1
		ORDER BY at_round DESC
		LIMIT 1
	`, discussionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	entry := row.toEntry()
	return &entry, nil
}

func (row summaryRow) toEntry() dialogue.SummaryEntry {
	entry := dialogue.SummaryEntry{
		Text:         row.Text,
		AtRound:      row.AtRound,
		TokensBefore: row.TokensBefore,
		TokensAfter:  row.TokensAfter,
		CreatedAtMs:  row.CreatedAtMs,
	}
	if len(row.ReplacesRounds) > 0 {
		_ = json.Unmarshal(row.ReplacesRounds, &entry.ReplacesRounds)
	}
	return entry
}
