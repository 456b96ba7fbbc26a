package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"channelchat/internal/chat"
)

// MessageHandler serves the message query endpoints that do not ride the
// websocket.
type MessageHandler struct {
	pipeline *chat.Pipeline
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(pipeline *chat.Pipeline) *MessageHandler {
	return &MessageHandler{pipeline: pipeline}
}

// Search finds messages in a room by substring.
func (h *MessageHandler) Search(c *gin.Context) {
	username := c.GetString("username")
	messages, err := h.pipeline.Search(c.Request.Context(), c.Param("room_id"), username, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Unread returns the caller's per-room unread summary.
func (h *MessageHandler) Unread(c *gin.Context) {
	username := c.GetString("username")
	summary, err := h.pipeline.UnreadSummary(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// MarkRead records the caller as a reader of the given messages.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_ids is required"})
		return
	}

	username := c.GetString("username")
	updated, err := h.pipeline.MarkRead(c.Request.Context(), c.Param("room_id"), username, req.MessageIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": updated})
}

// LastMessage returns the room's latest message preview.
func (h *MessageHandler) LastMessage(c *gin.Context) {
	preview, err := h.pipeline.LastMessagePreview(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if preview == nil {
		c.JSON(http.StatusOK, gin.H{"last_message": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"last_message": preview})
}
