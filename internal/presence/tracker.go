package presence

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"channelchat/internal/observability"
	"channelchat/internal/repositories"
)

// Tracker records client heartbeats and marks users offline once their
// heartbeat goes stale. Liveness never follows from heartbeats alone; it only
// reflects what clients report.
type Tracker struct {
	heartbeats repositories.HeartbeatRepository
	users      repositories.UserRepository
	threshold  time.Duration
	now        func() time.Time
}

// NewTracker constructs a Tracker with the given staleness threshold.
func NewTracker(heartbeats repositories.HeartbeatRepository, users repositories.UserRepository, threshold time.Duration) *Tracker {
	return &Tracker{
		heartbeats: heartbeats,
		users:      users,
		threshold:  threshold,
		now:        time.Now,
	}
}

// Heartbeat records a liveness ping and marks the user online.
func (t *Tracker) Heartbeat(ctx context.Context, username string) error {
	if err := t.heartbeats.Upsert(ctx, username, t.now().UTC()); err != nil {
		return err
	}
	return t.users.SetOnline(ctx, username, true)
}

// Stop marks the user offline immediately and drops their heartbeat, for
// clean shutdowns that should not wait out the sweep.
func (t *Tracker) Stop(ctx context.Context, username string) error {
	if err := t.heartbeats.Delete(ctx, username); err != nil {
		return err
	}
	return t.users.SetOnline(ctx, username, false)
}

// Sweep marks every user with a stale heartbeat offline and returns how many
// were flipped. Per-user failures are logged and skipped so one bad row never
// stalls the sweep.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	cutoff := t.now().UTC().Add(-t.threshold)
	stale, err := t.heartbeats.Stale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, username := range stale {
		if err := t.users.SetOnline(ctx, username, false); err != nil {
			log.Printf("presence sweep: mark %s offline: %v", username, err)
			continue
		}
		if err := t.heartbeats.Delete(ctx, username); err != nil {
			log.Printf("presence sweep: drop heartbeat for %s: %v", username, err)
		}
		marked++
	}
	if marked > 0 {
		observability.AddPresenceSweepMarked(marked)
		log.Printf("presence sweep marked %d users offline", marked)
	}
	return marked, nil
}

// StartSweeper schedules Sweep on the given cron spec and returns the running
// scheduler. Callers stop it on shutdown.
func (t *Tracker) StartSweeper(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := t.Sweep(context.Background()); err != nil {
			log.Printf("presence sweep failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
