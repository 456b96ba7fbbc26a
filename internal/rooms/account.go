package rooms

import (
	"context"
	"fmt"
	"log"

	"channelchat/internal/models"
)

// DeleteAccount removes the user and everything they own. Each step is
// idempotent, so a retried call after a partial failure finishes the job.
func (r *Registry) DeleteAccount(ctx context.Context, username string) (models.CleanupReport, error) {
	var report models.CleanupReport

	owned, err := r.rooms.RoomsOwnedBy(ctx, username)
	if err != nil {
		return report, err
	}
	for _, room := range owned {
		roomReport, err := r.destroy(ctx, room.ID)
		report.Merge(roomReport)
		if err != nil {
			return report, fmt.Errorf("delete owned room %s: %w", room.ID, err)
		}
	}

	joined, err := r.rooms.RoomsForUser(ctx, username)
	if err != nil {
		return report, err
	}
	for _, room := range joined {
		if _, err := r.rooms.RemoveMember(ctx, room.ID, username); err != nil {
			return report, fmt.Errorf("leave room %s: %w", room.ID, err)
		}
		r.announce(ctx, room.ID, fmt.Sprintf("%s has left the room", username))
	}

	if err := r.users.RemoveFromAllFriendLists(ctx, username); err != nil {
		return report, err
	}
	if err := r.heartbeats.Delete(ctx, username); err != nil {
		log.Printf("delete heartbeat for %s: %v", username, err)
	}
	if err := r.users.Delete(ctx, username); err != nil {
		return report, err
	}
	r.audit.EmitRoomEvent(ctx, "", username, "account_deleted", "", "")
	return report, nil
}
