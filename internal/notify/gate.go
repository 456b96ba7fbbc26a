package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"channelchat/internal/models"
	"channelchat/internal/observability"
	"channelchat/internal/repositories"
)

// LiveDirectory answers whether a user is reachable over a live connection
// and delivers in-app events to them.
type LiveDirectory interface {
	SendToUser(username string, event models.Event) bool
}

// Publisher carries push requests out of process.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// PushRoutingKey is where the push delivery worker listens.
const PushRoutingKey = "notifications.push"

const pushBodyMax = 100

// Gate delays the notification decision after a message is sent, then picks
// exactly one channel: suppress, in-app, or push. The delay gives the
// recipient's own client time to mark the message read.
type Gate struct {
	messages repositories.MessageRepository
	users    repositories.UserRepository
	live     LiveDirectory
	pub      Publisher
	delay    time.Duration

	// after is swapped out in tests to fire synchronously.
	after func(d time.Duration, f func())
}

// NewGate constructs a Gate with the given decision delay.
func NewGate(messages repositories.MessageRepository, users repositories.UserRepository, live LiveDirectory, pub Publisher, delay time.Duration) *Gate {
	return &Gate{
		messages: messages,
		users:    users,
		live:     live,
		pub:      pub,
		delay:    delay,
		after:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

type request struct {
	messageID string
	roomID    string
	roomName  string
	sender    string
	recipient string
	preview   string
	direct    bool
}

// Schedule arms the decision timer for one recipient. No goroutine sits
// parked per message; the timer fires the decision directly.
func (g *Gate) Schedule(messageID, roomID, roomName, sender, recipient, preview string, direct bool) {
	req := request{
		messageID: messageID,
		roomID:    roomID,
		roomName:  roomName,
		sender:    sender,
		recipient: recipient,
		preview:   preview,
		direct:    direct,
	}
	g.after(g.delay, func() { g.fire(context.Background(), req) })
}

func (g *Gate) fire(ctx context.Context, req request) {
	msg, err := g.messages.Get(ctx, req.roomID, req.messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		observability.IncNotificationDecision(observability.NotifyOutcomeGone)
		return
	}
	if err != nil {
		log.Printf("notification decision for %s: fetch message: %v", req.recipient, err)
		return
	}
	for _, reader := range msg.ReadBy {
		if reader == req.recipient {
			observability.IncNotificationDecision(observability.NotifyOutcomeRead)
			return
		}
	}

	settings, err := g.users.NotificationSettings(ctx, req.recipient)
	if err != nil {
		log.Printf("notification decision for %s: load settings: %v", req.recipient, err)
		return
	}
	classEnabled := settings.GroupMessages
	if req.direct {
		classEnabled = settings.DirectMessages
	}
	if !settings.Enabled || !classEnabled {
		observability.IncNotificationDecision(observability.NotifyOutcomeSettings)
		return
	}

	notification := &models.Notification{
		ID:        uuid.NewString(),
		Type:      models.EventMessage,
		RoomID:    req.roomID,
		RoomName:  req.roomName,
		MessageID: req.messageID,
		Sender:    req.sender,
		Message:   req.preview,
		Timestamp: time.Now().UTC(),
	}
	if g.live.SendToUser(req.recipient, models.Event{Type: models.EventNotification, Notification: notification}) {
		observability.IncNotificationDecision(observability.NotifyOutcomeLive)
		return
	}

	token, err := g.users.DeviceToken(ctx, req.recipient)
	if err != nil {
		log.Printf("notification decision for %s: load device token: %v", req.recipient, err)
		return
	}
	if token == "" {
		observability.IncNotificationDecision(observability.NotifyOutcomeUnreachable)
		return
	}
	push := buildPushRequest(token, req)
	if err := g.pub.Publish(ctx, PushRoutingKey, push); err != nil {
		log.Printf("publish push request for %s: %v", req.recipient, err)
		return
	}
	observability.IncNotificationDecision(observability.NotifyOutcomePush)
}

// PushRequest is what the out-of-process push worker consumes.
type PushRequest struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

func buildPushRequest(token string, req request) PushRequest {
	title := fmt.Sprintf("New message in %s", req.roomName)
	if req.direct {
		title = fmt.Sprintf("New message from %s", req.sender)
	}
	body := fmt.Sprintf("%s: %s", req.sender, req.preview)
	if req.direct {
		body = req.preview
	}
	if len(body) > pushBodyMax {
		body = body[:pushBodyMax] + "..."
	}
	return PushRequest{
		Token: token,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"room_id":    req.roomID,
			"message_id": req.messageID,
			"sender":     req.sender,
		},
	}
}
