package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trilogue/trilogue-backend/internal/dialogue"
	"github.com/trilogue/trilogue-backend/internal/persona"
	"github.com/trilogue/trilogue-backend/internal/repository"
)

// RoundRepository implements repository.RoundRepository using PostgreSQL
type RoundRepository struct {
	db *sqlx.DB
}

// NewRoundRepository creates a new PostgreSQL round repository
func NewRoundRepository(db *sqlx.DB) repository.RoundRepository {
	return &RoundRepository{db: db}
}

type roundRow struct {
	DiscussionID    string    `db:"discussion_id"`
	Number          int       `db:"number"`
	Questions       []byte    `db:"questions"`
	SelectedOptions []byte    `db:"selected_options"`
	CreatedAt       time.Time `db:"created_at"`
}

type messageRow struct {
	ID           int64     `db:"id"`
	DiscussionID string    `db:"discussion_id"`
	RoundNumber  int       `db:"round_number"`
	Persona      string    `db:"persona"`
	Content      string    `db:"content"`
	Turn         int       `db:"turn"`
	CreatedAt    time.Time `db:"created_at"`
	CreatedAtMs  int64     `db:"created_at_ms"`
}

// Append writes a completed round and its three messages in one
// transaction, so a concurrent reader never observes a partial round.
func (r *RoundRepository) Append(ctx context.Context, discussionID string, round dialogue.DiscussionRound) error {
	if !round.IsComplete() {
		return fmt.Errorf("refusing to persist incomplete round %d", round.Number)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var questions []byte
	if round.Questions != nil {
		questions, err = json.Marshal(round.Questions)
		if err != nil {
			return fmt.Errorf("marshal questions: %w", err)
		}
	}
	var selected []byte
	if len(round.SelectedOptions) > 0 {
		selected, err = json.Marshal(round.SelectedOptions)
		if err != nil {
			return fmt.Errorf("marshal selected options: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (discussion_id, number, questions, selected_options, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, discussionID, round.Number, questions, selected, round.Timestamp)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	for _, p := range persona.AIPersonas {
		msg := round.Message(p)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (discussion_id, round_number, persona, content, turn, created_at, created_at_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, discussionID, round.Number, string(msg.Persona), msg.Content, msg.Turn, msg.Timestamp, msg.CreatedAtMs)
		if err != nil {
			return fmt.Errorf("insert %s message: %w", p, err)
		}
	}

	return tx.Commit()
}

// ListByDiscussion returns all rounds in order, with their messages.
func (r *RoundRepository) ListByDiscussion(ctx context.Context, discussionID string) ([]dialogue.DiscussionRound, error) {
	var roundRows []roundRow
	err := r.db.SelectContext(ctx, &roundRows, `
		SELECT discussion_id, number, questions, selected_options, created_at
		FROM rounds
		WHERE discussion_id = $1
		ORDER BY number ASC
	`, discussionID)
	if err != nil {
		return nil, err
	}

	var msgRows []messageRow
	err = r.db.SelectContext(ctx, &msgRows, `
		SELECT id, discussion_id, round_number, persona, content, turn, created_at, created_at_ms
		FROM messages
		WHERE discussion_id = $1
		ORDER BY turn ASC
	`, discussionID)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[int]*dialogue.DiscussionRound, len(roundRows))
	rounds := make([]dialogue.DiscussionRound, 0, len(roundRows))
	for _, row := range roundRows {
		round := dialogue.DiscussionRound{
			Number:    row.Number,
			Timestamp: row.CreatedAt,
		}
		if len(row.Questions) > 0 {
			var qs dialogue.QuestionSet
			if err := json.Unmarshal(row.Questions, &qs); err == nil {
				round.Questions = &qs
			}
		}
		if len(row.SelectedOptions) > 0 {
			_ = json.Unmarshal(row.SelectedOptions, &round.SelectedOptions)
		}
		rounds = append(rounds, round)
		byNumber[row.Number] = &rounds[len(rounds)-1]
	}

	for _, row := range msgRows {
		round, ok := byNumber[row.RoundNumber]
		if !ok {
			continue
		}
		msg := dialogue.ConversationMessage{
			ID:           row.ID,
			DiscussionID: row.DiscussionID,
			Persona:      persona.Persona(row.Persona),
			Content:      row.Content,
			Turn:         row.Turn,
			Timestamp:    row.CreatedAt,
			CreatedAtMs:  row.CreatedAtMs,
		}
		switch msg.Persona {
		case persona.Analyzer:
			round.Analyzer = &msg
		case persona.Solver:
			round.Solver = &msg
		case persona.Moderator:
			round.Moderator = &msg
		}
	}

	return rounds, nil
}

// SaveAnswers records the user's selected option ids on a round.
func (r *RoundRepository) SaveAnswers(ctx context.Context, discussionID string, roundNumber int, selected []string) error {
	payload, err := json.Marshal(selected)
	if err != nil {
		return fmt.Errorf("marshal selected options: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE rounds SET selected_options = $1
		WHERE discussion_id = $2 AND number = $3
	`, payload, discussionID, roundNumber)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
