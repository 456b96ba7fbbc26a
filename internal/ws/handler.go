package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"channelchat/internal/chat"
	"channelchat/internal/hub"
	"channelchat/internal/middleware"
	"channelchat/internal/models"
	"channelchat/internal/observability"
	"channelchat/internal/repositories"
	"channelchat/internal/rooms"
)

// Handler owns the room websocket endpoint: handshake, hub registration, and
// the read loop dispatching protocol frames.
type Handler struct {
	hub        *hub.Hub
	registry   *rooms.Registry
	pipeline   *chat.Pipeline
	users      repositories.UserRepository
	secret     []byte
	cookieName string
}

// NewHandler constructs a Handler.
func NewHandler(h *hub.Hub, registry *rooms.Registry, pipeline *chat.Pipeline, users repositories.UserRepository, secret []byte, cookieName string) *Handler {
	return &Handler{
		hub:        h,
		registry:   registry,
		pipeline:   pipeline,
		users:      users,
		secret:     secret,
		cookieName: cookieName,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, joins the user to the room if needed, and
// runs the read loop until the connection drops.
func (h *Handler) Handle(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room id"})
		return
	}

	ctx, span := otel.Tracer("channelchat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	username, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	room, _, err := h.registry.EnsureMembership(ctx, roomID, username)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join room"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	transport := newTransport(conn)
	info := ConnInfo{
		ConnID:      newConnID(),
		Username:    username,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	h.hub.Register(roomID, username, transport)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")

	if err := h.users.SetCurrentRoom(ctx, username, &roomID); err != nil {
		log.Printf("set current_room for %s: %v", username, err)
	}
	if err := h.users.SetOnline(ctx, username, true); err != nil {
		log.Printf("mark %s online: %v", username, err)
	}

	h.broadcastRoster(ctx, roomID, room.Name, username)
	h.sendHistory(ctx, roomID, transport)

	go h.readLoop(roomID, room.Name, username, conn, transport, info)
}

func (h *Handler) authenticate(c *gin.Context) (string, error) {
	token := ""
	if header := c.GetHeader("Authorization"); header != "" {
		if len(header) > 7 && header[:7] == "Bearer " {
			token = header[7:]
		}
	}
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		if cookie, err := c.Cookie(h.cookieName); err == nil {
			token = cookie
		}
	}
	if token == "" {
		return "", errors.New("missing token")
	}
	return middleware.ParseToken(token, h.secret)
}

func (h *Handler) readLoop(roomID, roomName, username string, conn *websocket.Conn, transport *wsTransport, info ConnInfo) {
	defer func() {
		h.hub.Unregister(roomID, username, transport)
		conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")

		ctx := context.Background()
		if err := h.users.ClearCurrentRoomIf(ctx, username, roomID); err != nil {
			log.Printf("clear current_room for %s: %v", username, err)
		}
		h.broadcastRoster(ctx, roomID, roomName, "")
		h.hub.Broadcast(roomID, models.Event{Type: models.EventUserDisconnected, Username: username})
		log.Printf("ws disconnect conn_id=%s user=%s room=%s duration_ms=%d",
			info.ConnID, username, roomID, time.Since(info.ConnectedAt).Milliseconds())
	}()

	for {
		var frame models.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read error conn_id=%s: %v", info.ConnID, err)
			}
			return
		}
		observability.IncWSEvent(frame.Type)
		h.dispatch(context.Background(), roomID, username, frame, transport)
	}
}

func (h *Handler) dispatch(ctx context.Context, roomID, username string, frame models.ClientFrame, transport *wsTransport) {
	switch frame.Type {
	case models.FrameMessage:
		_, err := h.pipeline.Send(ctx, roomID, username, chat.SendInput{
			Text:      frame.Data,
			ImageRef:  frame.Image,
			VideoRef:  frame.Video,
			Gif:       frame.Gif,
			ReplyToID: parseReplyTo(frame.ReplyTo),
		})
		if err != nil {
			h.sendError(transport, err)
		}

	case models.FrameTyping, models.FrameUserTyping:
		h.hub.Broadcast(roomID, models.Event{
			Type:     models.EventTyping,
			Username: username,
			IsTyping: frame.IsTyping,
		}, username)

	case models.FrameFindMessage:
		messages, found, hasMore, err := h.pipeline.FindMessage(ctx, roomID, frame.MessageID)
		if err != nil {
			h.sendError(transport, err)
			return
		}
		h.send(transport, models.Event{
			Type:     models.EventMessageFound,
			Messages: messages,
			Found:    models.Bool(found),
			HasMore:  models.Bool(hasMore),
		})

	case models.FrameToggleReaction:
		if _, err := h.pipeline.ToggleReaction(ctx, roomID, username, frame.MessageID, frame.Emoji); err != nil {
			h.sendError(transport, err)
		}

	case models.FrameEditMessage:
		if err := h.pipeline.Edit(ctx, roomID, username, frame.MessageID, frame.NewText); err != nil {
			h.sendError(transport, err)
		}

	case models.FrameDeleteMessage:
		if err := h.pipeline.Delete(ctx, roomID, username, frame.MessageID); err != nil {
			h.sendError(transport, err)
		}

	case models.FrameMarkMessagesRead:
		if _, err := h.pipeline.MarkRead(ctx, roomID, username, frame.MessageIDs); err != nil {
			h.sendError(transport, err)
		}

	case models.FrameLoadMoreMessages:
		messages, hasMore, err := h.pipeline.LoadMore(ctx, roomID, frame.LastMessageID)
		if err != nil {
			h.sendError(transport, err)
			return
		}
		h.send(transport, models.Event{
			Type:     models.EventMoreMessages,
			Messages: messages,
			HasMore:  models.Bool(hasMore),
		})

	default:
		h.send(transport, models.Event{Type: models.EventError, Error: "unknown frame type"})
	}
}

func (h *Handler) broadcastRoster(ctx context.Context, roomID, roomName, viewer string) {
	roster, err := h.registry.Roster(ctx, roomID, viewer)
	if err != nil {
		log.Printf("build roster for room %s: %v", roomID, err)
		return
	}
	h.hub.Broadcast(roomID, models.Event{
		Type:     models.EventUpdateUsers,
		Users:    roster,
		RoomName: roomName,
	})
}

func (h *Handler) sendHistory(ctx context.Context, roomID string, transport *wsTransport) {
	messages, hasMore, err := h.pipeline.History(ctx, roomID)
	if err != nil {
		log.Printf("load history for room %s: %v", roomID, err)
		return
	}
	h.send(transport, models.Event{
		Type:     models.EventChatHistory,
		Messages: messages,
		HasMore:  models.Bool(hasMore),
	})
}

func (h *Handler) send(transport *wsTransport, event models.Event) {
	if err := transport.Send(event); err != nil {
		log.Printf("ws send failed: %v", err)
	}
}

func (h *Handler) sendError(transport *wsTransport, err error) {
	h.send(transport, models.Event{Type: models.EventError, Error: err.Error()})
}
