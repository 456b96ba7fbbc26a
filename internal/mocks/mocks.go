package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"channelchat/internal/models"
)

// UserRepository is a testify mock of repositories.UserRepository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Get(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepository) SetOnline(ctx context.Context, username string, online bool) error {
	return m.Called(ctx, username, online).Error(0)
}

func (m *UserRepository) SetCurrentRoom(ctx context.Context, username string, roomID *string) error {
	return m.Called(ctx, username, roomID).Error(0)
}

func (m *UserRepository) ClearCurrentRoomIf(ctx context.Context, username, roomID string) error {
	return m.Called(ctx, username, roomID).Error(0)
}

func (m *UserRepository) ClearCurrentRoomForRoom(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *UserRepository) Friends(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	var friends []string
	if v := args.Get(0); v != nil {
		friends = v.([]string)
	}
	return friends, args.Error(1)
}

func (m *UserRepository) RemoveFromAllFriendLists(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *UserRepository) NotificationSettings(ctx context.Context, username string) (models.NotificationSettings, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(models.NotificationSettings), args.Error(1)
}

func (m *UserRepository) UpdateNotificationSettings(ctx context.Context, username string, settings models.NotificationSettings) error {
	return m.Called(ctx, username, settings).Error(0)
}

func (m *UserRepository) DeviceToken(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *UserRepository) SetDeviceToken(ctx context.Context, username, token string) error {
	return m.Called(ctx, username, token).Error(0)
}

func (m *UserRepository) ClearDeviceToken(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *UserRepository) Delete(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

// RoomRepository is a testify mock of repositories.RoomRepository.
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) Insert(ctx context.Context, room models.Room) (bool, error) {
	args := m.Called(ctx, room)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) Get(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *RoomRepository) AddMember(ctx context.Context, roomID, username string) (bool, error) {
	args := m.Called(ctx, roomID, username)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) RemoveMember(ctx context.Context, roomID, username string) (bool, error) {
	args := m.Called(ctx, roomID, username)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) IsMember(ctx context.Context, roomID, username string) (bool, error) {
	args := m.Called(ctx, roomID, username)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) Members(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	var members []string
	if v := args.Get(0); v != nil {
		members = v.([]string)
	}
	return members, args.Error(1)
}

func (m *RoomRepository) MemberCount(ctx context.Context, roomID string) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *RoomRepository) RoomsForUser(ctx context.Context, username string) ([]models.Room, error) {
	args := m.Called(ctx, username)
	var rooms []models.Room
	if v := args.Get(0); v != nil {
		rooms = v.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepository) RoomsOwnedBy(ctx context.Context, username string) ([]models.Room, error) {
	args := m.Called(ctx, username)
	var rooms []models.Room
	if v := args.Get(0); v != nil {
		rooms = v.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepository) Rename(ctx context.Context, roomID, name string) error {
	return m.Called(ctx, roomID, name).Error(0)
}

func (m *RoomRepository) Delete(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

// MessageRepository is a testify mock of repositories.MessageRepository.
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Append(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MessageRepository) Get(ctx context.Context, roomID, messageID string) (models.Message, error) {
	args := m.Called(ctx, roomID, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepository) History(ctx context.Context, roomID string, limit int) ([]models.Message, bool, error) {
	args := m.Called(ctx, roomID, limit)
	var messages []models.Message
	if v := args.Get(0); v != nil {
		messages = v.([]models.Message)
	}
	return messages, args.Bool(1), args.Error(2)
}

func (m *MessageRepository) PageBefore(ctx context.Context, roomID, beforeID string, limit int) ([]models.Message, bool, error) {
	args := m.Called(ctx, roomID, beforeID, limit)
	var messages []models.Message
	if v := args.Get(0); v != nil {
		messages = v.([]models.Message)
	}
	return messages, args.Bool(1), args.Error(2)
}

func (m *MessageRepository) Window(ctx context.Context, roomID, messageID string, radius int) ([]models.Message, bool, error) {
	args := m.Called(ctx, roomID, messageID, radius)
	var messages []models.Message
	if v := args.Get(0); v != nil {
		messages = v.([]models.Message)
	}
	return messages, args.Bool(1), args.Error(2)
}

func (m *MessageRepository) Search(ctx context.Context, roomID, query string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, query, limit)
	var messages []models.Message
	if v := args.Get(0); v != nil {
		messages = v.([]models.Message)
	}
	return messages, args.Error(1)
}

func (m *MessageRepository) Edit(ctx context.Context, roomID, messageID, sender, newText string) error {
	return m.Called(ctx, roomID, messageID, sender, newText).Error(0)
}

func (m *MessageRepository) Delete(ctx context.Context, roomID, messageID, sender string) error {
	return m.Called(ctx, roomID, messageID, sender).Error(0)
}

func (m *MessageRepository) ToggleReaction(ctx context.Context, roomID, messageID, username, emoji string) (models.ReactionMap, error) {
	args := m.Called(ctx, roomID, messageID, username, emoji)
	var reactions models.ReactionMap
	if v := args.Get(0); v != nil {
		reactions = v.(models.ReactionMap)
	}
	return reactions, args.Error(1)
}

func (m *MessageRepository) MarkRead(ctx context.Context, roomID string, messageIDs []string, reader string) ([]string, error) {
	args := m.Called(ctx, roomID, messageIDs, reader)
	var updated []string
	if v := args.Get(0); v != nil {
		updated = v.([]string)
	}
	return updated, args.Error(1)
}

func (m *MessageRepository) UnreadForUser(ctx context.Context, roomID, username string, previewCap int) (models.UnreadRoom, error) {
	args := m.Called(ctx, roomID, username, previewCap)
	return args.Get(0).(models.UnreadRoom), args.Error(1)
}

func (m *MessageRepository) Last(ctx context.Context, roomID string) (models.Message, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepository) AttachmentRefs(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	var refs []string
	if v := args.Get(0); v != nil {
		refs = v.([]string)
	}
	return refs, args.Error(1)
}

// HeartbeatRepository is a testify mock of repositories.HeartbeatRepository.
type HeartbeatRepository struct {
	mock.Mock
}

func (m *HeartbeatRepository) Upsert(ctx context.Context, username string, at time.Time) error {
	return m.Called(ctx, username, at).Error(0)
}

func (m *HeartbeatRepository) Delete(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *HeartbeatRepository) Stale(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	var stale []string
	if v := args.Get(0); v != nil {
		stale = v.([]string)
	}
	return stale, args.Error(1)
}

// MediaStore is a testify mock of media.Store.
type MediaStore struct {
	mock.Mock
}

func (m *MediaStore) Delete(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

// Publisher is a testify mock of rabbitmq.Publisher.
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *Publisher) Close() error {
	return m.Called().Error(0)
}
