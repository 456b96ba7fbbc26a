package chat

import (
	"context"
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

type scheduledNotification struct {
	messageID string
	roomID    string
	recipient string
	sender    string
	preview   string
	direct    bool
}

type fakeNotifier struct {
	mu        sync.Mutex
	scheduled []scheduledNotification
}

func (f *fakeNotifier) Schedule(messageID, roomID, roomName, sender, recipient, preview string, direct bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, scheduledNotification{
		messageID: messageID,
		roomID:    roomID,
		recipient: recipient,
		sender:    sender,
		preview:   preview,
		direct:    direct,
	})
}

func (f *fakeNotifier) all() []scheduledNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduledNotification(nil), f.scheduled...)
}

type recordingTransport struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingTransport) Send(event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingTransport) Close() error { return nil }

func (r *recordingTransport) sent() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...)
}

type pipelineFixture struct {
	rooms    *mocks.RoomRepository
	messages *mocks.MessageRepository
	hub      *hub.Hub
	notifier *fakeNotifier
	pipeline *Pipeline
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		rooms:    new(mocks.RoomRepository),
		messages: new(mocks.MessageRepository),
		hub:      hub.New(),
		notifier: &fakeNotifier{},
	}
	f.pipeline = NewPipeline(f.rooms, f.messages, f.hub, f.notifier)
	return f
}

func TestSendTextMessage(t *testing.T) {
	f := newPipelineFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01", Name: "general"}, nil)
	f.rooms.On("Members", mock.Anything, "ROOM01").Return([]string{"alice", "bob"}, nil)
	f.messages.On("Append", mock.Anything, mock.AnythingOfType("*models.Message")).Return(nil)

	listener := &recordingTransport{}
	f.hub.Register("ROOM01", "bob", listener)

	msg, err := f.pipeline.Send(context.Background(), "ROOM01", "alice", SendInput{Text: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, models.KindText, msg.Kind)
	assert.Equal(t, []string{"alice"}, msg.ReadBy)

	events := listener.sent()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMessage, events[0].Type)
	assert.Equal(t, "hello", events[0].Message.Body)

	scheduled := f.notifier.all()
	require.Len(t, scheduled, 1)
	assert.Equal(t, "bob", scheduled[0].recipient)
	assert.True(t, scheduled[0].direct, "two-member room counts as direct")
}

func TestSendGroupNotificationsFanOut(t *testing.T) {
	f := newPipelineFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01"}, nil)
	f.rooms.On("Members", mock.Anything, "ROOM01").Return([]string{"alice", "bob", "carol"}, nil)
	f.messages.On("Append", mock.Anything, mock.Anything).Return(nil)

	_, err := f.pipeline.Send(context.Background(), "ROOM01", "alice", SendInput{Text: "hi all"})
	require.NoError(t, err)

	scheduled := f.notifier.all()
	require.Len(t, scheduled, 2)
	for _, s := range scheduled {
		assert.False(t, s.direct)
		assert.NotEqual(t, "alice", s.recipient)
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	f := newPipelineFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01"}, nil)

	_, err := f.pipeline.Send(context.Background(), "ROOM01", "alice", SendInput{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendRejectsMultipleAttachments(t *testing.T) {
	f := newPipelineFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01"}, nil)

	img, vid := "img-1", "vid-1"
	_, err := f.pipeline.Send(context.Background(), "ROOM01", "alice", SendInput{ImageRef: &img, VideoRef: &vid})
	assert.ErrorIs(t, err, ErrConflictingAttachments)
}

func TestSendDropsMalformedGif(t *testing.T) {
	f := newPipelineFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01"}, nil)
	f.rooms.On("Members", mock.Anything, "ROOM01").Return([]string{"alice"}, nil)
	f.messages.On("Append", mock.Anything, mock.Anything).Return(nil)

	msg, err := f.pipeline.Send(context.Background(), "ROOM01", "alice", SendInput{
		Text: "look at this",
		Gif:  &models.GifAttachment{URL: "https://gifs.example/1.gif"},
	})
	require.NoError(t, err)
	assert.Nil(t, msg.Gif)
	assert.Equal(t, models.KindText, msg.Kind)
}

func TestSendResolvesReplySnapshot(t *testing.T) {
	f := newPipelineFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01"}, nil)
	f.rooms.On("Members", mock.Anything, "ROOM01").Return([]string{"alice"}, nil)
	f.messages.On("Get", mock.Anything, "ROOM01", "orig-1").Return(models.Message{
		ID: "orig-1", Kind: models.KindImage, Sender: "bob",
	}, nil)
	f.messages.On("Append", mock.Anything, mock.Anything).Return(nil)

	msg, err := f.pipeline.Send(context.Background(), "ROOM01", "alice", SendInput{Text: "nice", ReplyToID: "orig-1"})
	require.NoError(t, err)
	require.NotNil(t, msg.ReplyTo)
	assert.Equal(t, "orig-1", msg.ReplyTo.ID)
	assert.Equal(t, "📷 Image", msg.ReplyTo.Snippet)
}

func TestSendDropsMissingReplyTarget(t *testing.T) {
	f := newPipelineFixture()
	f.rooms.On("Get", mock.Anything, "ROOM01").Return(models.Room{ID: "ROOM01"}, nil)
	f.rooms.On("Members", mock.Anything, "ROOM01").Return([]string{"alice"}, nil)
	f.messages.On("Get", mock.Anything, "ROOM01", "gone-1").Return(models.Message{}, repositories.ErrMessageNotFound)
	f.messages.On("Append", mock.Anything, mock.Anything).Return(nil)

	msg, err := f.pipeline.Send(context.Background(), "ROOM01", "alice", SendInput{Text: "nice", ReplyToID: "gone-1"})
	require.NoError(t, err)
	assert.Nil(t, msg.ReplyTo)
}

func TestToggleReactionBroadcastsState(t *testing.T) {
	f := newPipelineFixture()
	state := models.ReactionMap{"👍": {Count: 1, Users: []string{"bob"}}}
	f.messages.On("ToggleReaction", mock.Anything, "ROOM01", "msg-1", "bob", "👍").Return(state, nil)

	listener := &recordingTransport{}
	f.hub.Register("ROOM01", "alice", listener)

	reactions, err := f.pipeline.ToggleReaction(context.Background(), "ROOM01", "bob", "msg-1", "👍")
	require.NoError(t, err)
	assert.Equal(t, state, reactions)

	events := listener.sent()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventUpdateReactions, events[0].Type)
	assert.Equal(t, "msg-1", events[0].MessageID)
	assert.Equal(t, state, events[0].Reactions)
}

func TestEditRequiresContentAndSender(t *testing.T) {
	f := newPipelineFixture()
	assert.ErrorIs(t, f.pipeline.Edit(context.Background(), "ROOM01", "bob", "msg-1", " "), ErrEmptyMessage)

	f.messages.On("Edit", mock.Anything, "ROOM01", "msg-1", "bob", "fixed").Return(repositories.ErrNotMessageSender)
	err := f.pipeline.Edit(context.Background(), "ROOM01", "bob", "msg-1", "fixed")
	assert.ErrorIs(t, err, repositories.ErrNotMessageSender)
}

func TestMarkReadBroadcastsOnlyChanges(t *testing.T) {
	f := newPipelineFixture()
	f.messages.On("MarkRead", mock.Anything, "ROOM01", []string{"m1", "m2"}, "bob").Return([]string{"m1"}, nil)

	listener := &recordingTransport{}
	f.hub.Register("ROOM01", "alice", listener)

	updated, err := f.pipeline.MarkRead(context.Background(), "ROOM01", "bob", []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, updated)

	events := listener.sent()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMessagesRead, events[0].Type)
	assert.Equal(t, "bob", events[0].Reader)
	assert.Equal(t, []string{"m1"}, events[0].MessageIDs)
}

func TestMarkReadSilentWhenNothingChanged(t *testing.T) {
	f := newPipelineFixture()
	f.messages.On("MarkRead", mock.Anything, "ROOM01", []string{"m1"}, "bob").Return(nil, nil)

	listener := &recordingTransport{}
	f.hub.Register("ROOM01", "alice", listener)

	_, err := f.pipeline.MarkRead(context.Background(), "ROOM01", "bob", []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, listener.sent())
}

func TestSearchGuards(t *testing.T) {
	f := newPipelineFixture()
	_, err := f.pipeline.Search(context.Background(), "ROOM01", "bob", "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	f.rooms.On("IsMember", mock.Anything, "ROOM01", "intruder").Return(false, nil)
	_, err = f.pipeline.Search(context.Background(), "ROOM01", "intruder", "hello")
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestSearchPassesThroughForMembers(t *testing.T) {
	f := newPipelineFixture()
	found := []models.Message{{ID: "m1", Body: "hello world"}}
	f.rooms.On("IsMember", mock.Anything, "ROOM01", "bob").Return(true, nil)
	f.messages.On("Search", mock.Anything, "ROOM01", "hello", 50).Return(found, nil)

	messages, err := f.pipeline.Search(context.Background(), "ROOM01", "bob", "hello")
	require.NoError(t, err)
	assert.Equal(t, found, messages)
}

func TestUnreadSummarySkipsReadRooms(t *testing.T) {
	f := newPipelineFixture()
	f.rooms.On("RoomsForUser", mock.Anything, "bob").Return([]models.Room{{ID: "ROOM01"}, {ID: "ROOM02"}}, nil)
	f.messages.On("UnreadForUser", mock.Anything, "ROOM01", "bob", 10).Return(models.UnreadRoom{
		UnreadCount: 2,
		Messages:    []models.UnreadMessage{{ID: "m1", Sender: "alice", Content: "📷 Image"}},
	}, nil)
	f.messages.On("UnreadForUser", mock.Anything, "ROOM02", "bob", 10).Return(models.UnreadRoom{}, nil)

	summary, err := f.pipeline.UnreadSummary(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 2, summary["ROOM01"].UnreadCount)
}

func TestFindMessageMissingReportsNotFound(t *testing.T) {
	f := newPipelineFixture()
	f.messages.On("Window", mock.Anything, "ROOM01", "gone", 10).Return(nil, false, repositories.ErrMessageNotFound)

	messages, found, _, err := f.pipeline.FindMessage(context.Background(), "ROOM01", "gone")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, messages)
}

func TestLastMessagePreviewEmptyRoom(t *testing.T) {
	f := newPipelineFixture()
	f.messages.On("Last", mock.Anything, "ROOM01").Return(models.Message{}, repositories.ErrMessageNotFound)

	preview, err := f.pipeline.LastMessagePreview(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Nil(t, preview)
}
