package models

import "time"

// Message kinds. A message carries text or exactly one attachment.
const (
	KindText   = "text"
	KindImage  = "image"
	KindVideo  = "video"
	KindGif    = "gif"
	KindSystem = "system"
)

// GifAttachment is a validated GIF descriptor. URL and title are both
// required; descriptors missing either are dropped before the message is
// stored.
type GifAttachment struct {
	URL     string    `json:"url"`
	Title   string    `json:"title"`
	SavedAt time.Time `json:"saved_at"`
}

// ReplyRef is a snapshot of the replied-to message taken at send time. Later
// edits of the original do not update the snippet.
type ReplyRef struct {
	ID      string `json:"id"`
	Snippet string `json:"message"`
}

// Reaction is one emoji's denormalized state on a message. The count always
// equals the number of users; an emoji with no users is removed outright.
type Reaction struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// ReactionMap maps emoji to reaction state.
type ReactionMap map[string]Reaction

// Message is one entry in a room's append-only sequence. Seq is assigned by
// the store at append time and is the room's authoritative order.
type Message struct {
	ID        string         `json:"id"`
	RoomID    string         `json:"room_id"`
	Seq       int64          `json:"-"`
	Sender    string         `json:"name"`
	Kind      string         `json:"type"`
	Body      string         `json:"message"`
	ImageRef  *string        `json:"image,omitempty"`
	VideoRef  *string        `json:"video,omitempty"`
	Gif       *GifAttachment `json:"gif,omitempty"`
	ReplyTo   *ReplyRef      `json:"reply_to,omitempty"`
	Reactions ReactionMap    `json:"reactions"`
	ReadBy    []string       `json:"read_by"`
	Edited    bool           `json:"edited"`
	CreatedAt time.Time      `json:"timestamp"`
}

// Preview renders the one-line summary used in room lists and unread
// previews.
func (m Message) Preview() MessagePreview {
	return MessagePreview{
		Content:   m.PreviewContent(),
		Sender:    m.Sender,
		Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		Type:      m.Kind,
	}
}

// PreviewContent substitutes a type label for non-text payloads.
func (m Message) PreviewContent() string {
	switch m.Kind {
	case KindVideo:
		return "📽 Video"
	case KindImage:
		return "📷 Image"
	case KindGif:
		return "🎥 GIF"
	default:
		return m.Body
	}
}

// UnreadMessage is one entry of an unread preview list.
type UnreadMessage struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// UnreadRoom is the per-room unread summary.
type UnreadRoom struct {
	UnreadCount int             `json:"unread_count"`
	Messages    []UnreadMessage `json:"messages"`
}
