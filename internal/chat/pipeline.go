package chat

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"channelchat/internal/hub"
	"channelchat/internal/models"
	"channelchat/internal/repositories"
)

var (
	ErrEmptyMessage           = errors.New("message has no content")
	ErrConflictingAttachments = errors.New("message carries more than one attachment")
	ErrEmptyQuery             = errors.New("search query must not be empty")
	ErrNotAMember             = errors.New("user is not a member of the room")
)

const (
	historyPageSize  = 20
	findRadius       = 10
	searchLimit      = 50
	unreadPreviewCap = 10
	replySnippetMax  = 100
)

// Notifier schedules a delayed notification decision for one recipient of a
// freshly sent message.
type Notifier interface {
	Schedule(messageID, roomID, roomName, sender, recipient, preview string, direct bool)
}

// SendInput is the content of an outgoing message before the pipeline stamps
// identity and order onto it.
type SendInput struct {
	Text      string
	ImageRef  *string
	VideoRef  *string
	Gif       *models.GifAttachment
	ReplyToID string
}

// Pipeline validates, persists, fans out, and schedules notifications for
// room messages.
type Pipeline struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	hub      *hub.Hub
	notifier Notifier
}

// NewPipeline constructs a Pipeline.
func NewPipeline(rooms repositories.RoomRepository, messages repositories.MessageRepository, h *hub.Hub, notifier Notifier) *Pipeline {
	return &Pipeline{rooms: rooms, messages: messages, hub: h, notifier: notifier}
}

// Send validates and appends a message, broadcasts it to the room, and
// schedules a notification decision for every other member.
func (p *Pipeline) Send(ctx context.Context, roomID, sender string, input SendInput) (models.Message, error) {
	room, err := p.rooms.Get(ctx, roomID)
	if err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Sender:    sender,
		Kind:      models.KindText,
		Body:      input.Text,
		Reactions: models.ReactionMap{},
		ReadBy:    []string{sender},
	}

	attachments := 0
	if input.ImageRef != nil && *input.ImageRef != "" {
		msg.ImageRef = input.ImageRef
		msg.Kind = models.KindImage
		attachments++
	}
	if input.VideoRef != nil && *input.VideoRef != "" {
		msg.VideoRef = input.VideoRef
		msg.Kind = models.KindVideo
		attachments++
	}
	if input.Gif != nil {
		// A gif descriptor missing url or title is dropped, not rejected.
		if input.Gif.URL == "" || input.Gif.Title == "" {
			log.Printf("dropping malformed gif attachment from %s in room %s", sender, roomID)
		} else {
			msg.Gif = input.Gif
			msg.Kind = models.KindGif
			attachments++
		}
	}
	if attachments > 1 {
		return models.Message{}, ErrConflictingAttachments
	}
	if attachments == 0 && strings.TrimSpace(msg.Body) == "" {
		return models.Message{}, ErrEmptyMessage
	}

	if input.ReplyToID != "" {
		original, err := p.messages.Get(ctx, roomID, input.ReplyToID)
		switch {
		case err == nil:
			snippet := original.PreviewContent()
			if len(snippet) > replySnippetMax {
				snippet = snippet[:replySnippetMax]
			}
			msg.ReplyTo = &models.ReplyRef{ID: original.ID, Snippet: snippet}
		case errors.Is(err, repositories.ErrMessageNotFound):
			log.Printf("reply target %s missing in room %s, sending without reference", input.ReplyToID, roomID)
		default:
			return models.Message{}, err
		}
	}

	if err := p.messages.Append(ctx, &msg); err != nil {
		return models.Message{}, err
	}

	p.hub.Broadcast(roomID, models.Event{Type: models.EventMessage, Message: &msg})
	p.scheduleNotifications(ctx, room, msg)
	return msg, nil
}

func (p *Pipeline) scheduleNotifications(ctx context.Context, room models.Room, msg models.Message) {
	if p.notifier == nil {
		return
	}
	members, err := p.rooms.Members(ctx, room.ID)
	if err != nil {
		log.Printf("list members of room %s for notifications: %v", room.ID, err)
		return
	}
	direct := len(members) == 2
	preview := msg.PreviewContent()
	for _, member := range members {
		if member == msg.Sender {
			continue
		}
		p.notifier.Schedule(msg.ID, room.ID, room.Name, msg.Sender, member, preview, direct)
	}
}

// ToggleReaction flips the user's reaction on a message and broadcasts the
// resulting reaction state.
func (p *Pipeline) ToggleReaction(ctx context.Context, roomID, username, messageID, emoji string) (models.ReactionMap, error) {
	reactions, err := p.messages.ToggleReaction(ctx, roomID, messageID, username, emoji)
	if err != nil {
		return nil, err
	}
	p.hub.Broadcast(roomID, models.Event{
		Type:      models.EventUpdateReactions,
		MessageID: messageID,
		Reactions: reactions,
	})
	return reactions, nil
}

// Edit replaces a message's text. Sender only.
func (p *Pipeline) Edit(ctx context.Context, roomID, sender, messageID, newText string) error {
	if strings.TrimSpace(newText) == "" {
		return ErrEmptyMessage
	}
	if err := p.messages.Edit(ctx, roomID, messageID, sender, newText); err != nil {
		return err
	}
	p.hub.Broadcast(roomID, models.Event{
		Type:      models.EventEditMessage,
		MessageID: messageID,
		NewText:   newText,
	})
	return nil
}

// Delete removes a message. Sender only.
func (p *Pipeline) Delete(ctx context.Context, roomID, sender, messageID string) error {
	if err := p.messages.Delete(ctx, roomID, messageID, sender); err != nil {
		return err
	}
	p.hub.Broadcast(roomID, models.Event{
		Type:      models.EventDeleteMessage,
		MessageID: messageID,
	})
	return nil
}

// MarkRead records the reader on each message and broadcasts which ids
// actually changed. Re-reads are absorbed by the store.
func (p *Pipeline) MarkRead(ctx context.Context, roomID, reader string, messageIDs []string) ([]string, error) {
	updated, err := p.messages.MarkRead(ctx, roomID, messageIDs, reader)
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		p.hub.Broadcast(roomID, models.Event{
			Type:       models.EventMessagesRead,
			Reader:     reader,
			MessageIDs: updated,
		})
	}
	return updated, nil
}

// Search returns up to 50 of the room's most recent messages containing the
// query, oldest first. Members only.
func (p *Pipeline) Search(ctx context.Context, roomID, username, query string) ([]models.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	member, err := p.rooms.IsMember(ctx, roomID, username)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotAMember
	}
	return p.messages.Search(ctx, roomID, query, searchLimit)
}

// UnreadSummary reports, per joined room, how many messages the user has not
// read and a capped preview of them.
func (p *Pipeline) UnreadSummary(ctx context.Context, username string) (map[string]models.UnreadRoom, error) {
	rooms, err := p.rooms.RoomsForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	summary := map[string]models.UnreadRoom{}
	for _, room := range rooms {
		unread, err := p.messages.UnreadForUser(ctx, room.ID, username, unreadPreviewCap)
		if err != nil {
			log.Printf("unread summary for room %s: %v", room.ID, err)
			continue
		}
		if unread.UnreadCount > 0 {
			summary[room.ID] = unread
		}
	}
	return summary, nil
}

// History returns the most recent page of the room's messages.
func (p *Pipeline) History(ctx context.Context, roomID string) ([]models.Message, bool, error) {
	return p.messages.History(ctx, roomID, historyPageSize)
}

// LoadMore returns the page of messages before the given id.
func (p *Pipeline) LoadMore(ctx context.Context, roomID, beforeID string) ([]models.Message, bool, error) {
	return p.messages.PageBefore(ctx, roomID, beforeID, historyPageSize)
}

// FindMessage returns the message and its surrounding context. A missing id
// reports found=false rather than an error, matching the protocol.
func (p *Pipeline) FindMessage(ctx context.Context, roomID, messageID string) ([]models.Message, bool, bool, error) {
	window, hasMore, err := p.messages.Window(ctx, roomID, messageID, findRadius)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, err
	}
	return window, true, hasMore, nil
}

// LastMessagePreview renders the room's latest message as a one-line preview,
// or nil when the room has no messages.
func (p *Pipeline) LastMessagePreview(ctx context.Context, roomID string) (*models.MessagePreview, error) {
	last, err := p.messages.Last(ctx, roomID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	preview := last.Preview()
	return &preview, nil
}
