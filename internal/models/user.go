package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// User is the slice of the user document the chat core reads and writes.
// Account credentials live with the auth layer and never pass through here.
type User struct {
	Username    string   `db:"username" json:"username"`
	Online      bool     `db:"online" json:"online"`
	CurrentRoom *string  `db:"current_room" json:"current_room,omitempty"`
	Friends     []string `json:"friends"`
	DeviceToken *string  `db:"device_token" json:"-"`
}

// NotificationSettings controls whether and for which message classes a user
// receives push notifications.
type NotificationSettings struct {
	Enabled        bool `json:"enabled"`
	DirectMessages bool `json:"direct_messages"`
	GroupMessages  bool `json:"group_messages"`
}

// DefaultNotificationSettings matches the document-level defaults.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{Enabled: false, DirectMessages: true, GroupMessages: true}
}

// Value serializes the settings for a JSONB column.
func (s NotificationSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan reads the settings back from a JSONB column.
func (s *NotificationSettings) Scan(src interface{}) error {
	if src == nil {
		*s = DefaultNotificationSettings()
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("notification settings: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, s)
}

// RoomUser is a roster entry as shown to a room member.
type RoomUser struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
	IsFriend bool   `json:"isFriend"`
}
