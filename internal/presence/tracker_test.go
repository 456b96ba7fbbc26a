package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"channelchat/internal/mocks"
	"channelchat/internal/repositories"
)

func fixedTracker(hb repositories.HeartbeatRepository, users repositories.UserRepository, at time.Time) *Tracker {
	tracker := NewTracker(hb, users, 5*time.Minute)
	tracker.now = func() time.Time { return at }
	return tracker
}

func TestHeartbeatMarksOnline(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	hb := new(mocks.HeartbeatRepository)
	users := new(mocks.UserRepository)
	hb.On("Upsert", mock.Anything, "alice", now).Return(nil)
	users.On("SetOnline", mock.Anything, "alice", true).Return(nil)

	tracker := fixedTracker(hb, users, now)
	require.NoError(t, tracker.Heartbeat(context.Background(), "alice"))

	hb.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestStopMarksOfflineImmediately(t *testing.T) {
	hb := new(mocks.HeartbeatRepository)
	users := new(mocks.UserRepository)
	hb.On("Delete", mock.Anything, "alice").Return(nil)
	users.On("SetOnline", mock.Anything, "alice", false).Return(nil)

	tracker := fixedTracker(hb, users, time.Now())
	require.NoError(t, tracker.Stop(context.Background(), "alice"))

	hb.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestSweepMarksStaleUsersOffline(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	hb := new(mocks.HeartbeatRepository)
	users := new(mocks.UserRepository)
	hb.On("Stale", mock.Anything, now.Add(-5*time.Minute)).Return([]string{"alice", "bob"}, nil)
	users.On("SetOnline", mock.Anything, "alice", false).Return(nil)
	users.On("SetOnline", mock.Anything, "bob", false).Return(nil)
	hb.On("Delete", mock.Anything, "alice").Return(nil)
	hb.On("Delete", mock.Anything, "bob").Return(nil)

	tracker := fixedTracker(hb, users, now)
	marked, err := tracker.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	hb.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestSweepSkipsFailingUser(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	hb := new(mocks.HeartbeatRepository)
	users := new(mocks.UserRepository)
	hb.On("Stale", mock.Anything, mock.Anything).Return([]string{"alice", "bob"}, nil)
	users.On("SetOnline", mock.Anything, "alice", false).Return(errors.New("db down"))
	users.On("SetOnline", mock.Anything, "bob", false).Return(nil)
	hb.On("Delete", mock.Anything, "bob").Return(nil)

	tracker := fixedTracker(hb, users, now)
	marked, err := tracker.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	hb.AssertNotCalled(t, "Delete", mock.Anything, "alice")
}

func TestSweepNothingStale(t *testing.T) {
	hb := new(mocks.HeartbeatRepository)
	users := new(mocks.UserRepository)
	hb.On("Stale", mock.Anything, mock.Anything).Return(nil, nil)

	tracker := fixedTracker(hb, users, time.Now())
	marked, err := tracker.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, marked)
	users.AssertNotCalled(t, "SetOnline", mock.Anything, mock.Anything, mock.Anything)
}
