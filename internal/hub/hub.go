package hub

import (
	"hash/fnv"
	"log"
	"sync"

	"channelchat/internal/models"
	"channelchat/internal/observability"
)

// shardCount spreads room maps over independent locks so a broadcast in one
// room never contends with registration in another.
const shardCount = 32

// Transport is one live delivery channel for a (room, user) pair. Send must be
// safe for concurrent use.
type Transport interface {
	Send(event models.Event) error
	Close() error
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Transport
}

// Hub tracks which user is reachable in which room. At most one transport is
// kept per (room, user); registering a second one supersedes and closes the
// first.
type Hub struct {
	shards [shardCount]*shard
}

// New creates an empty hub.
func New() *Hub {
	h := &Hub{}
	for i := range h.shards {
		h.shards[i] = &shard{rooms: make(map[string]map[string]Transport)}
	}
	return h
}

func (h *Hub) shardFor(roomID string) *shard {
	f := fnv.New32a()
	f.Write([]byte(roomID))
	return h.shards[f.Sum32()%shardCount]
}

// Register attaches the transport for the user in the room. A previously
// registered transport for the same pair is closed.
func (h *Hub) Register(roomID, username string, t Transport) {
	s := h.shardFor(roomID)
	s.mu.Lock()
	room, ok := s.rooms[roomID]
	if !ok {
		room = make(map[string]Transport)
		s.rooms[roomID] = room
	}
	prev := room[username]
	room[username] = t
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// Unregister detaches the transport, but only while it is still the current
// one for the pair. A stale handle from a superseded connection is a no-op.
func (h *Hub) Unregister(roomID, username string, t Transport) {
	s := h.shardFor(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room[username] != t {
		return
	}
	delete(room, username)
	if len(room) == 0 {
		delete(s.rooms, roomID)
	}
}

// Broadcast sends the event to every transport in the room, skipping the
// users named in exclude. Transports that fail to accept the event are closed
// and evicted.
func (h *Hub) Broadcast(roomID string, event models.Event, exclude ...string) {
	s := h.shardFor(roomID)
	s.mu.RLock()
	targets := make(map[string]Transport, len(s.rooms[roomID]))
	for username, t := range s.rooms[roomID] {
		targets[username] = t
	}
	s.mu.RUnlock()

	for _, skip := range exclude {
		delete(targets, skip)
	}
	for username, t := range targets {
		if err := t.Send(event); err != nil {
			log.Printf("broadcast to %s in room %s failed: %v", username, roomID, err)
			t.Close()
			h.Unregister(roomID, username, t)
			observability.IncBroadcastFailure()
		}
	}
}

// SendToUser delivers the event to the user on every room they are attached
// to. It reports whether at least one transport accepted the event.
func (h *Hub) SendToUser(username string, event models.Event) bool {
	delivered := false
	for _, t := range h.transportsFor(username) {
		if err := t.entry.Send(event); err != nil {
			log.Printf("send to %s in room %s failed: %v", username, t.roomID, err)
			t.entry.Close()
			h.Unregister(t.roomID, username, t.entry)
			observability.IncBroadcastFailure()
			continue
		}
		delivered = true
	}
	return delivered
}

// IsOnline reports whether the user has a live transport in any room.
func (h *Hub) IsOnline(username string) bool {
	for _, s := range h.shards {
		s.mu.RLock()
		for _, room := range s.rooms {
			if _, ok := room[username]; ok {
				s.mu.RUnlock()
				return true
			}
		}
		s.mu.RUnlock()
	}
	return false
}

// RoomOccupants returns the usernames currently attached to the room.
func (h *Hub) RoomOccupants(roomID string) []string {
	s := h.shardFor(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	occupants := make([]string, 0, len(s.rooms[roomID]))
	for username := range s.rooms[roomID] {
		occupants = append(occupants, username)
	}
	return occupants
}

type roomTransport struct {
	roomID string
	entry  Transport
}

func (h *Hub) transportsFor(username string) []roomTransport {
	var out []roomTransport
	for _, s := range h.shards {
		s.mu.RLock()
		for roomID, room := range s.rooms {
			if t, ok := room[username]; ok {
				out = append(out, roomTransport{roomID: roomID, entry: t})
			}
		}
		s.mu.RUnlock()
	}
	return out
}
