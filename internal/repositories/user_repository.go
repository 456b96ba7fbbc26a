package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"channelchat/internal/models"
)

// UserRepository abstracts the user documents the chat core touches.
type UserRepository interface {
	Get(ctx context.Context, username string) (models.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	SetOnline(ctx context.Context, username string, online bool) error
	SetCurrentRoom(ctx context.Context, username string, roomID *string) error
	ClearCurrentRoomIf(ctx context.Context, username, roomID string) error
	ClearCurrentRoomForRoom(ctx context.Context, roomID string) error
	Friends(ctx context.Context, username string) ([]string, error)
	RemoveFromAllFriendLists(ctx context.Context, username string) error
	NotificationSettings(ctx context.Context, username string) (models.NotificationSettings, error)
	UpdateNotificationSettings(ctx context.Context, username string, settings models.NotificationSettings) error
	DeviceToken(ctx context.Context, username string) (string, error)
	SetDeviceToken(ctx context.Context, username, token string) error
	ClearDeviceToken(ctx context.Context, username string) error
	Delete(ctx context.Context, username string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Get fetches a user by username.
func (r *UserRepo) Get(ctx context.Context, username string) (models.User, error) {
	var user models.User
	var friends pq.StringArray
	row := r.db.QueryRowxContext(ctx,
		`SELECT username, online, current_room, friends, device_token FROM users WHERE username=$1`, username)
	err := row.Scan(&user.Username, &user.Online, &user.CurrentRoom, &friends, &user.DeviceToken)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	user.Friends = friends
	return user, err
}

// Exists checks whether the username is registered.
func (r *UserRepo) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`, username)
	return exists, err
}

// SetOnline flips the user's displayed online status.
func (r *UserRepo) SetOnline(ctx context.Context, username string, online bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET online=$2 WHERE username=$1`, username, online)
	return err
}

// SetCurrentRoom points the user at a room, or clears it when nil.
func (r *UserRepo) SetCurrentRoom(ctx context.Context, username string, roomID *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET current_room=$2 WHERE username=$1`, username, roomID)
	return err
}

// ClearCurrentRoomIf clears current_room only when it still points at roomID.
func (r *UserRepo) ClearCurrentRoomIf(ctx context.Context, username, roomID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET current_room=NULL WHERE username=$1 AND current_room=$2`, username, roomID)
	return err
}

// ClearCurrentRoomForRoom clears current_room for every user pointing at the room.
func (r *UserRepo) ClearCurrentRoomForRoom(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET current_room=NULL WHERE current_room=$1`, roomID)
	return err
}

// Friends returns the user's friend list.
func (r *UserRepo) Friends(ctx context.Context, username string) ([]string, error) {
	var friends pq.StringArray
	err := r.db.GetContext(ctx, &friends, `SELECT friends FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return friends, err
}

// RemoveFromAllFriendLists strips the username out of every friend list.
func (r *UserRepo) RemoveFromAllFriendLists(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET friends = array_remove(friends, $1) WHERE $1 = ANY(friends)`, username)
	return err
}

// NotificationSettings loads the user's notification preferences.
func (r *UserRepo) NotificationSettings(ctx context.Context, username string) (models.NotificationSettings, error) {
	var settings models.NotificationSettings
	err := r.db.GetContext(ctx, &settings,
		`SELECT notification_settings FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultNotificationSettings(), ErrUserNotFound
	}
	return settings, err
}

// UpdateNotificationSettings replaces the user's notification preferences.
func (r *UserRepo) UpdateNotificationSettings(ctx context.Context, username string, settings models.NotificationSettings) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET notification_settings=$2 WHERE username=$1`, username, settings)
	return err
}

// DeviceToken returns the registered push token, empty when absent.
func (r *UserRepo) DeviceToken(ctx context.Context, username string) (string, error) {
	var token sql.NullString
	err := r.db.GetContext(ctx, &token, `SELECT device_token FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return token.String, err
}

// SetDeviceToken registers a push token and enables notifications.
func (r *UserRepo) SetDeviceToken(ctx context.Context, username, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET device_token=$2,
            notification_settings = jsonb_set(notification_settings, '{enabled}', 'true')
         WHERE username=$1`, username, token)
	return err
}

// ClearDeviceToken drops the push token and disables notifications.
func (r *UserRepo) ClearDeviceToken(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET device_token=NULL,
            notification_settings = jsonb_set(notification_settings, '{enabled}', 'false')
         WHERE username=$1`, username)
	return err
}

// Delete removes the user document.
func (r *UserRepo) Delete(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username=$1`, username)
	return err
}
