package database

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/trilogue/trilogue-backend/internal/config"
)

// PgLockManager implements dialogue.DiscussionLocker with PostgreSQL
// advisory locks, so the one-round-per-discussion guarantee holds across
// multiple server instances. The session lock is pinned to a dedicated
// pool connection until released.
type PgLockManager struct {
	pool *pgxpool.Pool
}

// NewPgLockManager connects a lock manager to the database.
func NewPgLockManager(cfg config.DatabaseConfig) (*PgLockManager, error) {
	pool, err := pgxpool.Connect(context.Background(), GetDSN(cfg))
	if err != nil {
		return nil, err
	}
	return &PgLockManager{pool: pool}, nil
}

// TryAcquire attempts to take the advisory lock for a discussion.
func (m *PgLockManager) TryAcquire(discussionID string) (func(), bool) {
	ctx := context.Background()

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		logrus.WithError(err).Warn("could not acquire connection for discussion lock")
		return nil, false
	}

	key := lockKey(discussionID)
	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&locked); err != nil || !locked {
		conn.Release()
		return nil, false
	}

	release := func() {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
			logrus.WithError(err).Warn("could not release discussion lock")
		}
	}
	return release, true
}

// Close shuts down the lock manager's pool.
func (m *PgLockManager) Close() {
	m.pool.Close()
}

func lockKey(discussionID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(discussionID))
	return int64(h.Sum64())
}
