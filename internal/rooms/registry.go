package rooms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"channelchat/internal/hub"
	"channelchat/internal/media"
	"channelchat/internal/models"
	"channelchat/internal/repositories"
	"channelchat/internal/telemetry"
)

var (
	ErrEmptyName        = errors.New("room name must not be empty")
	ErrOwnerCannotLeave = errors.New("room owner cannot leave, delete the room instead")
	ErrNotRoomOwner     = errors.New("only the room owner may do this")
	ErrCannotKickOwner  = errors.New("room owner cannot be kicked")
	ErrNotAMember       = errors.New("user is not a member of the room")
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	codeAttempts = 5
)

// Registry owns room lifecycle and membership.
type Registry struct {
	rooms      repositories.RoomRepository
	users      repositories.UserRepository
	messages   repositories.MessageRepository
	heartbeats repositories.HeartbeatRepository
	hub        *hub.Hub
	media      media.Store
	audit      *telemetry.AuditEmitter
	genCode    func() string
}

// NewRegistry constructs a Registry.
func NewRegistry(rooms repositories.RoomRepository, users repositories.UserRepository, messages repositories.MessageRepository, heartbeats repositories.HeartbeatRepository, h *hub.Hub, store media.Store, audit *telemetry.AuditEmitter) *Registry {
	return &Registry{
		rooms:      rooms,
		users:      users,
		messages:   messages,
		heartbeats: heartbeats,
		hub:        h,
		media:      store,
		audit:      audit,
		genCode:    newRoomCode,
	}
}

func newRoomCode() string {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// Create makes a new room owned by owner and joins them to it. The room code
// is regenerated on collision.
func (r *Registry) Create(ctx context.Context, owner, name string) (models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Room{}, ErrEmptyName
	}

	room := models.Room{Name: name, CreatedBy: owner, CreatedAt: time.Now().UTC()}
	inserted := false
	for i := 0; i < codeAttempts; i++ {
		room.ID = r.genCode()
		collision, err := r.rooms.Insert(ctx, room)
		if err != nil {
			return models.Room{}, err
		}
		if !collision {
			inserted = true
			break
		}
	}
	if !inserted {
		return models.Room{}, fmt.Errorf("create room: could not find a free code after %d attempts", codeAttempts)
	}

	if _, err := r.rooms.AddMember(ctx, room.ID, owner); err != nil {
		return models.Room{}, err
	}
	r.audit.EmitRoomEvent(ctx, room.ID, owner, "room_created", "", name)
	return room, nil
}

// Join adds the user to the room and points their current_room at it.
func (r *Registry) Join(ctx context.Context, roomID, username string) (models.Room, error) {
	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if _, err := r.rooms.AddMember(ctx, roomID, username); err != nil {
		return models.Room{}, err
	}
	if err := r.users.SetCurrentRoom(ctx, username, &roomID); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// EnsureMembership adds the user to the room when a live connection arrives
// for a room they have not joined yet, announcing the first join to the room.
func (r *Registry) EnsureMembership(ctx context.Context, roomID, username string) (models.Room, bool, error) {
	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		return models.Room{}, false, err
	}
	added, err := r.rooms.AddMember(ctx, roomID, username)
	if err != nil {
		return models.Room{}, false, err
	}
	if added {
		r.announce(ctx, roomID, fmt.Sprintf("%s has joined the room", username))
	}
	return room, added, nil
}

// Leave removes the user from the room. The owner cannot leave; a room left
// empty is deleted outright.
func (r *Registry) Leave(ctx context.Context, roomID, username string) error {
	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy == username {
		return ErrOwnerCannotLeave
	}
	removed, err := r.rooms.RemoveMember(ctx, roomID, username)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotAMember
	}
	if err := r.users.ClearCurrentRoomIf(ctx, username, roomID); err != nil {
		log.Printf("clear current_room for %s: %v", username, err)
	}

	count, err := r.rooms.MemberCount(ctx, roomID)
	if err != nil {
		return err
	}
	if count == 0 {
		_, err := r.destroy(ctx, roomID)
		return err
	}
	r.announce(ctx, roomID, fmt.Sprintf("%s has left the room", username))
	return nil
}

// Delete removes the room and its stored media. Owner only. The report counts
// blob deletions that succeeded and failed; blob failures never block the
// room removal.
func (r *Registry) Delete(ctx context.Context, roomID, requester string) (models.CleanupReport, error) {
	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		return models.CleanupReport{}, err
	}
	if room.CreatedBy != requester {
		return models.CleanupReport{}, ErrNotRoomOwner
	}
	report, err := r.destroy(ctx, roomID)
	if err != nil {
		return report, err
	}
	r.audit.EmitRoomEvent(ctx, roomID, requester, "room_deleted", "", room.Name)
	return report, nil
}

// Kick removes target from the room. Owner only, and the owner cannot be the
// target. The target's live connections are told to drop the room.
func (r *Registry) Kick(ctx context.Context, roomID, requester, target string) error {
	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != requester {
		return ErrNotRoomOwner
	}
	if target == room.CreatedBy {
		return ErrCannotKickOwner
	}
	removed, err := r.rooms.RemoveMember(ctx, roomID, target)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotAMember
	}
	if err := r.users.ClearCurrentRoomIf(ctx, target, roomID); err != nil {
		log.Printf("clear current_room for %s: %v", target, err)
	}

	r.hub.SendToUser(target, models.Event{
		Type:     models.EventUserKicked,
		Room:     roomID,
		RoomName: room.Name,
	})
	r.announce(ctx, roomID, fmt.Sprintf("%s has been removed from the room", target))
	r.audit.EmitRoomEvent(ctx, roomID, requester, "user_kicked", target, "")
	return nil
}

// Rename changes the room name. Owner only.
func (r *Registry) Rename(ctx context.Context, roomID, requester, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != requester {
		return ErrNotRoomOwner
	}
	if err := r.rooms.Rename(ctx, roomID, name); err != nil {
		return err
	}
	r.audit.EmitRoomEvent(ctx, roomID, requester, "room_renamed", "", name)
	return nil
}

// Roster lists the room's members with their online status and whether each
// is a friend of the viewer.
func (r *Registry) Roster(ctx context.Context, roomID, viewer string) ([]models.RoomUser, error) {
	members, err := r.rooms.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}

	friends := map[string]bool{}
	if viewer != "" {
		list, err := r.users.Friends(ctx, viewer)
		if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
			return nil, err
		}
		for _, f := range list {
			friends[f] = true
		}
	}

	roster := make([]models.RoomUser, 0, len(members))
	for _, member := range members {
		online := false
		if user, err := r.users.Get(ctx, member); err == nil {
			online = user.Online
		}
		roster = append(roster, models.RoomUser{
			Username: member,
			Online:   online,
			IsFriend: friends[member],
		})
	}
	return roster, nil
}

// Room fetches a room by id.
func (r *Registry) Room(ctx context.Context, roomID string) (models.Room, error) {
	return r.rooms.Get(ctx, roomID)
}

// IsMember reports persisted membership.
func (r *Registry) IsMember(ctx context.Context, roomID, username string) (bool, error) {
	return r.rooms.IsMember(ctx, roomID, username)
}

// RoomsForUser lists the rooms the user belongs to.
func (r *Registry) RoomsForUser(ctx context.Context, username string) ([]models.Room, error) {
	return r.rooms.RoomsForUser(ctx, username)
}

// destroy deletes the room's media blobs and then the room itself. Membership
// and messages go with the room.
func (r *Registry) destroy(ctx context.Context, roomID string) (models.CleanupReport, error) {
	var report models.CleanupReport
	refs, err := r.messages.AttachmentRefs(ctx, roomID)
	if err != nil {
		log.Printf("list attachments for room %s: %v", roomID, err)
	}
	for _, ref := range refs {
		if err := r.media.Delete(ctx, ref); err != nil {
			log.Printf("delete media %s: %v", ref, err)
			report.FailedCount++
			continue
		}
		report.DeletedCount++
	}

	if err := r.users.ClearCurrentRoomForRoom(ctx, roomID); err != nil {
		log.Printf("clear current_room for room %s: %v", roomID, err)
	}
	return report, r.rooms.Delete(ctx, roomID)
}

// announce appends a system message and broadcasts it to the room.
func (r *Registry) announce(ctx context.Context, roomID, text string) {
	msg := &models.Message{
		ID:     uuid.NewString(),
		RoomID: roomID,
		Sender: "system",
		Kind:   models.KindSystem,
		Body:   text,
	}
	if err := r.messages.Append(ctx, msg); err != nil {
		log.Printf("append system message to room %s: %v", roomID, err)
		return
	}
	r.hub.Broadcast(roomID, models.Event{Type: models.EventMessage, Message: msg})
}
