package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"channelchat/internal/chat"
	"channelchat/internal/repositories"
	"channelchat/internal/rooms"
)

// respondError maps service errors onto HTTP statuses. Anything unmapped is a
// 500 with a generic body; the detail goes to the log only.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, repositories.ErrNotMessageSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the message sender"})
	case errors.Is(err, rooms.ErrNotRoomOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the room owner may do this"})
	case errors.Is(err, rooms.ErrOwnerCannotLeave):
		c.JSON(http.StatusForbidden, gin.H{"error": "room owner cannot leave, delete the room instead"})
	case errors.Is(err, rooms.ErrCannotKickOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "room owner cannot be kicked"})
	case errors.Is(err, rooms.ErrNotAMember), errors.Is(err, chat.ErrNotAMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of the room"})
	case errors.Is(err, rooms.ErrEmptyName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
	case errors.Is(err, chat.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be empty"})
	case errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message has no content"})
	case errors.Is(err, chat.ErrConflictingAttachments):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message carries more than one attachment"})
	default:
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
