package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"channelchat/internal/chat"
	"channelchat/internal/models"
	"channelchat/internal/rooms"
)

// RoomHandler serves room lifecycle and membership endpoints.
type RoomHandler struct {
	registry *rooms.Registry
	pipeline *chat.Pipeline
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(registry *rooms.Registry, pipeline *chat.Pipeline) *RoomHandler {
	return &RoomHandler{registry: registry, pipeline: pipeline}
}

// Create makes a new room owned by the caller.
func (h *RoomHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	username := c.GetString("username")
	room, err := h.registry.Create(c.Request.Context(), username, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room_id": room.ID, "name": room.Name})
}

// Join adds the caller to the room.
func (h *RoomHandler) Join(c *gin.Context) {
	username := c.GetString("username")
	room, err := h.registry.Join(c.Request.Context(), c.Param("room_id"), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": room.ID, "name": room.Name})
}

// Leave removes the caller from the room.
func (h *RoomHandler) Leave(c *gin.Context) {
	username := c.GetString("username")
	if err := h.registry.Leave(c.Request.Context(), c.Param("room_id"), username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "successfully left the room"})
}

// Delete removes the room and its media. Owner only.
func (h *RoomHandler) Delete(c *gin.Context) {
	username := c.GetString("username")
	report, err := h.registry.Delete(c.Request.Context(), c.Param("room_id"), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "room deleted",
		"deleted_count": report.DeletedCount,
		"failed_count":  report.FailedCount,
	})
}

// Kick removes a member from the room. Owner only.
func (h *RoomHandler) Kick(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	requester := c.GetString("username")
	if err := h.registry.Kick(c.Request.Context(), c.Param("room_id"), requester, req.Username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user removed from the room"})
}

// Rename changes the room name. Owner only.
func (h *RoomHandler) Rename(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	username := c.GetString("username")
	if err := h.registry.Rename(c.Request.Context(), c.Param("room_id"), username, req.Name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "room renamed", "name": req.Name})
}

// Settings returns the roster and ownership view of the room for the caller.
func (h *RoomHandler) Settings(c *gin.Context) {
	username := c.GetString("username")
	roomID := c.Param("room_id")

	room, err := h.registry.Room(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	roster, err := h.registry.Roster(c.Request.Context(), roomID, username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room_id":  room.ID,
		"name":     room.Name,
		"users":    roster,
		"is_owner": room.CreatedBy == username,
	})
}

// List returns the caller's rooms with last-message previews and unread
// counts.
func (h *RoomHandler) List(c *gin.Context) {
	username := c.GetString("username")
	ctx := c.Request.Context()

	joined, err := h.registry.RoomsForUser(ctx, username)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.pipeline.UnreadSummary(ctx, username)
	if err != nil {
		respondError(c, err)
		return
	}

	summaries := make([]models.RoomSummary, 0, len(joined))
	for _, room := range joined {
		summary := models.RoomSummary{
			Code:        room.ID,
			Name:        room.Name,
			UnreadCount: unread[room.ID].UnreadCount,
		}
		if roster, err := h.registry.Roster(ctx, room.ID, username); err == nil {
			for _, entry := range roster {
				summary.Users = append(summary.Users, entry.Username)
			}
		}
		if preview, err := h.pipeline.LastMessagePreview(ctx, room.ID); err == nil && preview != nil {
			summary.LastMessage = *preview
		} else if err != nil {
			log.Printf("last message preview for room %s: %v", room.ID, err)
		}
		summaries = append(summaries, summary)
	}
	c.JSON(http.StatusOK, gin.H{"rooms": summaries})
}

// DeleteAccount removes the caller's account and everything they own.
func (h *RoomHandler) DeleteAccount(c *gin.Context) {
	username := c.GetString("username")
	report, err := h.registry.DeleteAccount(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "account deleted",
		"deleted_count": report.DeletedCount,
		"failed_count":  report.FailedCount,
	})
}
