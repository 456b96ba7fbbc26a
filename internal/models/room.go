package models

import "time"

// Room is a named, owned chat channel. Membership rows and messages are kept
// separately; the room document stays small.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MessagePreview is the rendered one-line summary of a room's latest message.
// Non-text messages render as a fixed type label rather than raw content.
type MessagePreview struct {
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

// RoomSummary is the dashboard view of one room for one user.
type RoomSummary struct {
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Users       []string       `json:"users"`
	LastMessage MessagePreview `json:"last_message"`
	UnreadCount int            `json:"unread_count"`
}

// CleanupReport summarizes a best-effort media cleanup: blob deletions are
// counted, not fatal.
type CleanupReport struct {
	DeletedCount int `json:"deleted_count"`
	FailedCount  int `json:"failed_count"`
}

// Merge folds another report into this one.
func (r *CleanupReport) Merge(other CleanupReport) {
	r.DeletedCount += other.DeletedCount
	r.FailedCount += other.FailedCount
}
