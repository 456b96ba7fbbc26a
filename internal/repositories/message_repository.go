package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"channelchat/internal/models"
)

// reactionRetries bounds the add/remove race loop in ToggleReaction.
const reactionRetries = 3

// MessageRepository abstracts the per-room append-only message sequence.
type MessageRepository interface {
	// Append stores the message and fills in its Seq and CreatedAt.
	Append(ctx context.Context, msg *models.Message) error
	Get(ctx context.Context, roomID, messageID string) (models.Message, error)
	// History returns the most recent limit messages in ascending order, plus
	// whether older messages exist.
	History(ctx context.Context, roomID string, limit int) ([]models.Message, bool, error)
	// PageBefore returns up to limit messages strictly older than beforeID.
	PageBefore(ctx context.Context, roomID, beforeID string, limit int) ([]models.Message, bool, error)
	// Window returns the message with up to radius neighbors on each side,
	// plus whether messages exist before the window.
	Window(ctx context.Context, roomID, messageID string, radius int) ([]models.Message, bool, error)
	Search(ctx context.Context, roomID, query string, limit int) ([]models.Message, error)
	Edit(ctx context.Context, roomID, messageID, sender, newText string) error
	Delete(ctx context.Context, roomID, messageID, sender string) error
	// ToggleReaction adds the user's reaction when absent and removes it when
	// present, returning the resulting reaction state.
	ToggleReaction(ctx context.Context, roomID, messageID, username, emoji string) (models.ReactionMap, error)
	// MarkRead marks the given messages read by the reader, skipping the
	// reader's own messages, and returns the ids actually updated.
	MarkRead(ctx context.Context, roomID string, messageIDs []string, reader string) ([]string, error)
	UnreadForUser(ctx context.Context, roomID, username string, previewCap int) (models.UnreadRoom, error)
	Last(ctx context.Context, roomID string) (models.Message, error)
	// AttachmentRefs lists the image and video blob references stored in the
	// room, for cleanup before the room is deleted.
	AttachmentRefs(ctx context.Context, roomID string) ([]string, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, seq, sender, kind, body, image_ref, video_ref, gif, reply_to, reactions, read_by, edited, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMessage decodes one message row. The JSONB columns are unmarshalled by
// hand so the model stays plain.
func scanMessage(row rowScanner) (models.Message, error) {
	var (
		msg       models.Message
		gif       []byte
		replyTo   []byte
		reactions []byte
		readBy    pq.StringArray
	)
	err := row.Scan(&msg.ID, &msg.RoomID, &msg.Seq, &msg.Sender, &msg.Kind, &msg.Body,
		&msg.ImageRef, &msg.VideoRef, &gif, &replyTo, &reactions, &readBy, &msg.Edited, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	if len(gif) > 0 {
		msg.Gif = &models.GifAttachment{}
		if err := json.Unmarshal(gif, msg.Gif); err != nil {
			return models.Message{}, fmt.Errorf("decode gif: %w", err)
		}
	}
	if len(replyTo) > 0 {
		msg.ReplyTo = &models.ReplyRef{}
		if err := json.Unmarshal(replyTo, msg.ReplyTo); err != nil {
			return models.Message{}, fmt.Errorf("decode reply_to: %w", err)
		}
	}
	msg.Reactions = models.ReactionMap{}
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
			return models.Message{}, fmt.Errorf("decode reactions: %w", err)
		}
	}
	msg.ReadBy = readBy
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}
	return msg, nil
}

func (r *MessageRepo) selectMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) Append(ctx context.Context, msg *models.Message) error {
	var (
		gif     any
		replyTo any
		err     error
	)
	if msg.Gif != nil {
		if gif, err = json.Marshal(msg.Gif); err != nil {
			return err
		}
	}
	if msg.ReplyTo != nil {
		if replyTo, err = json.Marshal(msg.ReplyTo); err != nil {
			return err
		}
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}
	row := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (id, room_id, sender, kind, body, image_ref, video_ref, gif, reply_to, read_by)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
         RETURNING seq, created_at`,
		msg.ID, msg.RoomID, msg.Sender, msg.Kind, msg.Body, msg.ImageRef, msg.VideoRef, gif, replyTo, pq.Array(msg.ReadBy))
	if err := row.Scan(&msg.Seq, &msg.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrRoomNotFound
		}
		return err
	}
	if msg.Reactions == nil {
		msg.Reactions = models.ReactionMap{}
	}
	return nil
}

func (r *MessageRepo) Get(ctx context.Context, roomID, messageID string) (models.Message, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE room_id=$1 AND id=$2`, roomID, messageID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

func (r *MessageRepo) History(ctx context.Context, roomID string, limit int) ([]models.Message, bool, error) {
	messages, err := r.selectMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY seq DESC LIMIT $2`,
		roomID, limit+1)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	reverse(messages)
	return messages, hasMore, nil
}

func (r *MessageRepo) PageBefore(ctx context.Context, roomID, beforeID string, limit int) ([]models.Message, bool, error) {
	messages, err := r.selectMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
         WHERE room_id=$1 AND seq < (SELECT seq FROM messages WHERE room_id=$1 AND id=$2)
         ORDER BY seq DESC LIMIT $3`,
		roomID, beforeID, limit+1)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	reverse(messages)
	return messages, hasMore, nil
}

func (r *MessageRepo) Window(ctx context.Context, roomID, messageID string, radius int) ([]models.Message, bool, error) {
	anchor, err := r.Get(ctx, roomID, messageID)
	if err != nil {
		return nil, false, err
	}
	before, err := r.selectMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
         WHERE room_id=$1 AND seq < $2 ORDER BY seq DESC LIMIT $3`,
		roomID, anchor.Seq, radius+1)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(before) > radius
	if hasMore {
		before = before[:radius]
	}
	reverse(before)
	after, err := r.selectMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
         WHERE room_id=$1 AND seq > $2 ORDER BY seq ASC LIMIT $3`,
		roomID, anchor.Seq, radius)
	if err != nil {
		return nil, false, err
	}
	window := make([]models.Message, 0, len(before)+1+len(after))
	window = append(window, before...)
	window = append(window, anchor)
	window = append(window, after...)
	return window, hasMore, nil
}

func (r *MessageRepo) Search(ctx context.Context, roomID, query string, limit int) ([]models.Message, error) {
	messages, err := r.selectMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
         WHERE room_id=$1 AND body ILIKE '%' || $2 || '%'
         ORDER BY seq DESC LIMIT $3`,
		roomID, query, limit)
	if err != nil {
		return nil, err
	}
	reverse(messages)
	return messages, nil
}

func (r *MessageRepo) Edit(ctx context.Context, roomID, messageID, sender, newText string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET body=$4, edited=TRUE WHERE room_id=$1 AND id=$2 AND sender=$3`,
		roomID, messageID, sender, newText)
	if err != nil {
		return err
	}
	return r.resolveSenderMiss(ctx, res, roomID, messageID)
}

func (r *MessageRepo) Delete(ctx context.Context, roomID, messageID, sender string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE room_id=$1 AND id=$2 AND sender=$3`,
		roomID, messageID, sender)
	if err != nil {
		return err
	}
	return r.resolveSenderMiss(ctx, res, roomID, messageID)
}

// resolveSenderMiss turns a zero-row sender-guarded write into the right
// sentinel.
func (r *MessageRepo) resolveSenderMiss(ctx context.Context, res sql.Result, roomID, messageID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	err = r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE room_id=$1 AND id=$2)`, roomID, messageID)
	if err != nil {
		return err
	}
	if exists {
		return ErrNotMessageSender
	}
	return ErrMessageNotFound
}

func (r *MessageRepo) ToggleReaction(ctx context.Context, roomID, messageID, username, emoji string) (models.ReactionMap, error) {
	// Each direction is a single conditional update, so concurrent toggles of
	// the same emoji never lose counts. A toggle that races the opposite
	// direction misses both conditions and retries.
	for i := 0; i < reactionRetries; i++ {
		reactions, ok, err := r.reactionUpdate(ctx,
			`UPDATE messages SET reactions = jsonb_set(
                COALESCE(reactions, '{}'::jsonb), ARRAY[$4],
                jsonb_build_object(
                    'count', COALESCE((reactions #>> ARRAY[$4,'count'])::int, 0) + 1,
                    'users', COALESCE(reactions #> ARRAY[$4,'users'], '[]'::jsonb) || to_jsonb($3::text)))
             WHERE room_id=$1 AND id=$2
               AND NOT COALESCE(reactions #> ARRAY[$4,'users'], '[]'::jsonb) ? $3
             RETURNING reactions`,
			roomID, messageID, username, emoji)
		if err != nil {
			return nil, err
		}
		if ok {
			return reactions, nil
		}

		reactions, ok, err = r.reactionUpdate(ctx,
			`UPDATE messages SET reactions = CASE
                WHEN (reactions #>> ARRAY[$4,'count'])::int <= 1 THEN reactions - $4
                ELSE jsonb_set(
                    jsonb_set(reactions, ARRAY[$4,'users'], (reactions #> ARRAY[$4,'users']) - $3),
                    ARRAY[$4,'count'], to_jsonb((reactions #>> ARRAY[$4,'count'])::int - 1))
             END
             WHERE room_id=$1 AND id=$2
               AND reactions #> ARRAY[$4,'users'] ? $3
             RETURNING reactions`,
			roomID, messageID, username, emoji)
		if err != nil {
			return nil, err
		}
		if ok {
			return reactions, nil
		}

		var exists bool
		err = r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE room_id=$1 AND id=$2)`, roomID, messageID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrMessageNotFound
		}
	}
	return nil, fmt.Errorf("toggle reaction: retries exhausted for message %s", messageID)
}

func (r *MessageRepo) reactionUpdate(ctx context.Context, query string, args ...any) (models.ReactionMap, bool, error) {
	var raw []byte
	err := r.db.QueryRowxContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	reactions := models.ReactionMap{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &reactions); err != nil {
			return nil, false, fmt.Errorf("decode reactions: %w", err)
		}
	}
	return reactions, true, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, roomID string, messageIDs []string, reader string) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryxContext(ctx,
		`UPDATE messages SET read_by = array_append(read_by, $3)
         WHERE room_id=$1 AND id = ANY($2) AND sender <> $3 AND NOT ($3 = ANY(read_by))
         RETURNING id`,
		roomID, pq.Array(messageIDs), reader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updated []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

func (r *MessageRepo) UnreadForUser(ctx context.Context, roomID, username string, previewCap int) (models.UnreadRoom, error) {
	summary := models.UnreadRoom{Messages: []models.UnreadMessage{}}
	err := r.db.GetContext(ctx, &summary.UnreadCount,
		`SELECT COUNT(*) FROM messages
         WHERE room_id=$1 AND sender <> $2 AND kind <> 'system' AND NOT ($2 = ANY(read_by))`,
		roomID, username)
	if err != nil {
		return summary, err
	}
	if summary.UnreadCount == 0 {
		return summary, nil
	}
	messages, err := r.selectMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
         WHERE room_id=$1 AND sender <> $2 AND kind <> 'system' AND NOT ($2 = ANY(read_by))
         ORDER BY seq DESC LIMIT $3`,
		roomID, username, previewCap)
	if err != nil {
		return summary, err
	}
	reverse(messages)
	for _, msg := range messages {
		summary.Messages = append(summary.Messages, models.UnreadMessage{
			ID:      msg.ID,
			Sender:  msg.Sender,
			Content: msg.PreviewContent(),
		})
	}
	return summary, nil
}

func (r *MessageRepo) Last(ctx context.Context, roomID string) (models.Message, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY seq DESC LIMIT 1`, roomID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

func (r *MessageRepo) AttachmentRefs(ctx context.Context, roomID string) ([]string, error) {
	var refs []string
	err := r.db.SelectContext(ctx, &refs,
		`SELECT image_ref FROM messages WHERE room_id=$1 AND image_ref IS NOT NULL
         UNION ALL
         SELECT video_ref FROM messages WHERE room_id=$1 AND video_ref IS NOT NULL`,
		roomID)
	return refs, err
}

func reverse(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
