package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// HeartbeatRepository tracks per-user liveness timestamps for the presence
// sweep.
type HeartbeatRepository interface {
	Upsert(ctx context.Context, username string, at time.Time) error
	Delete(ctx context.Context, username string) error
	// Stale returns the usernames whose last heartbeat is older than cutoff.
	Stale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// HeartbeatRepo is a sqlx implementation of HeartbeatRepository.
type HeartbeatRepo struct {
	db *sqlx.DB
}

// NewHeartbeatRepo constructs a HeartbeatRepo.
func NewHeartbeatRepo(db *sqlx.DB) *HeartbeatRepo {
	return &HeartbeatRepo{db: db}
}

func (r *HeartbeatRepo) Upsert(ctx context.Context, username string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO heartbeats (username, last_seen) VALUES ($1, $2)
         ON CONFLICT (username) DO UPDATE SET last_seen = EXCLUDED.last_seen`,
		username, at)
	return err
}

func (r *HeartbeatRepo) Delete(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM heartbeats WHERE username=$1`, username)
	return err
}

func (r *HeartbeatRepo) Stale(ctx context.Context, cutoff time.Time) ([]string, error) {
	var stale []string
	err := r.db.SelectContext(ctx, &stale,
		`SELECT username FROM heartbeats WHERE last_seen < $1`, cutoff)
	return stale, err
}
