package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"channelchat/internal/presence"
)

// PresenceHandler serves the heartbeat endpoints clients poll while active.
type PresenceHandler struct {
	tracker *presence.Tracker
}

// NewPresenceHandler constructs a PresenceHandler.
func NewPresenceHandler(tracker *presence.Tracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

// Heartbeat records a liveness ping for the caller.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	username := c.GetString("username")
	if err := h.tracker.Heartbeat(c.Request.Context(), username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StopHeartbeat marks the caller offline immediately.
func (h *PresenceHandler) StopHeartbeat(c *gin.Context) {
	username := c.GetString("username")
	if err := h.tracker.Stop(c.Request.Context(), username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
