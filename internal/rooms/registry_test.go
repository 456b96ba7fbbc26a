package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"channelchat/internal/hub"
	"channelchat/internal/mocks"
	"channelchat/internal/models"
	"channelchat/internal/repositories"
)

type stubTransport struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *stubTransport) Send(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubTransport) Close() error { return nil }

func (s *stubTransport) sent() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.events...)
}

type registryFixture struct {
	rooms      *mocks.RoomRepository
	users      *mocks.UserRepository
	messages   *mocks.MessageRepository
	heartbeats *mocks.HeartbeatRepository
	media      *mocks.MediaStore
	hub        *hub.Hub
	registry   *Registry
}

func newFixture() *registryFixture {
	f := &registryFixture{
		rooms:      new(mocks.RoomRepository),
		users:      new(mocks.UserRepository),
		messages:   new(mocks.MessageRepository),
		heartbeats: new(mocks.HeartbeatRepository),
		media:      new(mocks.MediaStore),
		hub:        hub.New(),
	}
	f.registry = NewRegistry(f.rooms, f.users, f.messages, f.heartbeats, f.hub, f.media, nil)
	return f
}

func TestCreateRejectsEmptyName(t *testing.T) {
	f := newFixture()
	_, err := f.registry.Create(context.Background(), "alice", "   ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestCreateRetriesOnCodeCollision(t *testing.T) {
	f := newFixture()
	codes := []string{"TAKEN1", "FREE02"}
	f.registry.genCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}
	f.rooms.On("Insert", mock.Anything, mock.MatchedBy(func(r models.Room) bool { return r.ID == "TAKEN1" })).Return(true, nil)
	f.rooms.On("Insert", mock.Anything, mock.MatchedBy(func(r models.Room) bool { return r.ID == "FREE02" })).Return(false, nil)
	f.rooms.On("AddMember", mock.Anything, "FREE02", "alice").Return(true, nil)

	room, err := f.registry.Create(context.Background(), "alice", "general")
	require.NoError(t, err)
	assert.Equal(t, "FREE02", room.ID)
	assert.Equal(t, "alice", room.CreatedBy)
	f.rooms.AssertExpectations(t)
}

func TestEnsureMembershipAnnouncesFirstJoin(t *testing.T) {
	f := newFixture()
	room := models.Room{ID: "ROOM01", Name: "general", CreatedBy: "alice"}
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(room, nil)
	f.rooms.On("AddMember", mock.Anything, "ROOM01", "bob").Return(true, nil)
	f.messages.On("Append", mock.Anything, mock.AnythingOfType("*models.Message")).Return(nil)

	listener := &stubTransport{}
	f.hub.Register("ROOM01", "alice", listener)

	_, firstJoin, err := f.registry.EnsureMembership(context.Background(), "ROOM01", "bob")
	require.NoError(t, err)
	assert.True(t, firstJoin)

	events := listener.sent()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Message)
	assert.Equal(t, models.KindSystem, events[0].Message.Kind)
	assert.Equal(t, "bob has joined the room", events[0].Message.Body)
}

func TestEnsureMembershipQuietForExistingMember(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01"}, nil)
	f.rooms.On("AddMember", mock.Anything, "ROOM01", "bob").Return(false, nil)

	_, firstJoin, err := f.registry.EnsureMembership(context.Background(), "ROOM01", "bob")
	require.NoError(t, err)
	assert.False(t, firstJoin)
	f.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestLeaveBlocksOwner(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", CreatedBy: "alice"}, nil)

	err := f.registry.Leave(context.Background(), "ROOM01", "alice")
	assert.ErrorIs(t, err, ErrOwnerCannotLeave)
	f.rooms.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeaveAnnouncesAndKeepsPopulatedRoom(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", CreatedBy: "alice"}, nil)
	f.rooms.On("RemoveMember", mock.Anything, "ROOM01", "bob").Return(true, nil)
	f.rooms.On("MemberCount", mock.Anything, "ROOM01").Return(1, nil)
	f.users.On("ClearCurrentRoomIf", mock.Anything, "bob", "ROOM01").Return(nil)
	f.messages.On("Append", mock.Anything, mock.AnythingOfType("*models.Message")).Return(nil)

	require.NoError(t, f.registry.Leave(context.Background(), "ROOM01", "bob"))
	f.rooms.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.messages.AssertCalled(t, "Append", mock.Anything, mock.MatchedBy(func(m *models.Message) bool {
		return m.Body == "bob has left the room" && m.Kind == models.KindSystem
	}))
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", CreatedBy: "alice"}, nil)
	f.rooms.On("RemoveMember", mock.Anything, "ROOM01", "bob").Return(true, nil)
	f.rooms.On("MemberCount", mock.Anything, "ROOM01").Return(0, nil)
	f.rooms.On("Delete", mock.Anything, "ROOM01").Return(nil)
	f.users.On("ClearCurrentRoomIf", mock.Anything, "bob", "ROOM01").Return(nil)
	f.users.On("ClearCurrentRoomForRoom", mock.Anything, "ROOM01").Return(nil)
	f.messages.On("AttachmentRefs", mock.Anything, "ROOM01").Return(nil, nil)

	require.NoError(t, f.registry.Leave(context.Background(), "ROOM01", "bob"))
	f.rooms.AssertExpectations(t)
}

func TestDeleteRequiresOwner(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", CreatedBy: "alice"}, nil)

	_, err := f.registry.Delete(context.Background(), "ROOM01", "bob")
	assert.ErrorIs(t, err, ErrNotRoomOwner)
}

func TestDeleteCountsMediaCleanup(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", CreatedBy: "alice"}, nil)
	f.rooms.On("Delete", mock.Anything, "ROOM01").Return(nil)
	f.users.On("ClearCurrentRoomForRoom", mock.Anything, "ROOM01").Return(nil)
	f.messages.On("AttachmentRefs", mock.Anything, "ROOM01").Return([]string{"img-1", "vid-1", "img-2"}, nil)
	f.media.On("Delete", mock.Anything, "img-1").Return(nil)
	f.media.On("Delete", mock.Anything, "vid-1").Return(errors.New("blob service down"))
	f.media.On("Delete", mock.Anything, "img-2").Return(nil)

	report, err := f.registry.Delete(context.Background(), "ROOM01", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, report.DeletedCount)
	assert.Equal(t, 1, report.FailedCount)
}

func TestKickRules(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", CreatedBy: "alice"}, nil)

	err := f.registry.Kick(context.Background(), "ROOM01", "bob", "carol")
	assert.ErrorIs(t, err, ErrNotRoomOwner)

	err = f.registry.Kick(context.Background(), "ROOM01", "alice", "alice")
	assert.ErrorIs(t, err, ErrCannotKickOwner)
}

func TestKickNotifiesTarget(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", Name: "general", CreatedBy: "alice"}, nil)
	f.rooms.On("RemoveMember", mock.Anything, "ROOM01", "bob").Return(true, nil)
	f.users.On("ClearCurrentRoomIf", mock.Anything, "bob", "ROOM01").Return(nil)
	f.messages.On("Append", mock.Anything, mock.AnythingOfType("*models.Message")).Return(nil)

	target := &stubTransport{}
	f.hub.Register("ROOM01", "bob", target)

	require.NoError(t, f.registry.Kick(context.Background(), "ROOM01", "alice", "bob"))

	events := target.sent()
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventUserKicked, events[0].Type)
	assert.Equal(t, "ROOM01", events[0].Room)
	assert.Equal(t, "general", events[0].RoomName)
}

func TestKickMissingMember(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", CreatedBy: "alice"}, nil)
	f.rooms.On("RemoveMember", mock.Anything, "ROOM01", "ghost").Return(false, nil)

	err := f.registry.Kick(context.Background(), "ROOM01", "alice", "ghost")
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestRenameRequiresOwnerAndName(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", CreatedBy: "alice"}, nil)

	assert.ErrorIs(t, f.registry.Rename(context.Background(), "ROOM01", "alice", "  "), ErrEmptyName)
	assert.ErrorIs(t, f.registry.Rename(context.Background(), "ROOM01", "bob", "lounge"), ErrNotRoomOwner)

	f.rooms.On("Rename", mock.Anything, "ROOM01", "lounge").Return(nil)
	assert.NoError(t, f.registry.Rename(context.Background(), "ROOM01", "alice", "lounge"))
}

func TestRosterFlagsFriendsAndPresence(t *testing.T) {
	f := newFixture()
	f.rooms.On("Members", mock.Anything, "ROOM01").Return([]string{"alice", "bob"}, nil)
	f.users.On("Friends", mock.Anything, "carol").Return([]string{"bob"}, nil)
	f.users.On("Get", mock.Anything, "alice").Return(models.User{Username: "alice", Online: true}, nil)
	f.users.On("Get", mock.Anything, "bob").Return(models.User{Username: "bob", Online: false}, nil)

	roster, err := f.registry.Roster(context.Background(), "ROOM01", "carol")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, models.RoomUser{Username: "alice", Online: true, IsFriend: false}, roster[0])
	assert.Equal(t, models.RoomUser{Username: "bob", Online: false, IsFriend: true}, roster[1])
}

func TestDeleteAccountSequence(t *testing.T) {
	f := newFixture()
	owned := []models.Room{{ID: "OWNED1", CreatedBy: "alice"}}
	f.rooms.On("RoomsOwnedBy", mock.Anything, "alice").Return(owned, nil)
	f.messages.On("AttachmentRefs", mock.Anything, "OWNED1").Return([]string{"img-1"}, nil)
	f.media.On("Delete", mock.Anything, "img-1").Return(nil)
	f.users.On("ClearCurrentRoomForRoom", mock.Anything, "OWNED1").Return(nil)
	f.rooms.On("Delete", mock.Anything, "OWNED1").Return(nil)

	f.rooms.On("RoomsForUser", mock.Anything, "alice").Return([]models.Room{{ID: "OTHER1"}}, nil)
	f.rooms.On("RemoveMember", mock.Anything, "OTHER1", "alice").Return(true, nil)
	f.messages.On("Append", mock.Anything, mock.AnythingOfType("*models.Message")).Return(nil)

	f.users.On("RemoveFromAllFriendLists", mock.Anything, "alice").Return(nil)
	f.heartbeats.On("Delete", mock.Anything, "alice").Return(nil)
	f.users.On("Delete", mock.Anything, "alice").Return(nil)

	report, err := f.registry.DeleteAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeletedCount)
	f.users.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture()
	f.rooms.On("Get", mock.Anything, "NOROOM").Return(models.Room{}, repositories.ErrRoomNotFound)

	_, err := f.registry.Join(context.Background(), "NOROOM", "alice")
	assert.ErrorIs(t, err, repositories.ErrRoomNotFound)
}
