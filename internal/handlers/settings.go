package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"channelchat/internal/models"
	"channelchat/internal/repositories"
)

// SettingsHandler serves notification preferences and device token
// registration.
type SettingsHandler struct {
	users repositories.UserRepository
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(users repositories.UserRepository) *SettingsHandler {
	return &SettingsHandler{users: users}
}

// GetNotificationSettings returns the caller's notification preferences.
func (h *SettingsHandler) GetNotificationSettings(c *gin.Context) {
	username := c.GetString("username")
	settings, err := h.users.NotificationSettings(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateNotificationSettings replaces the caller's notification preferences.
func (h *SettingsHandler) UpdateNotificationSettings(c *gin.Context) {
	var req models.NotificationSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings body"})
		return
	}

	username := c.GetString("username")
	if err := h.users.UpdateNotificationSettings(c.Request.Context(), username, req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// RegisterDeviceToken stores a push token for the caller and turns
// notifications on.
func (h *SettingsHandler) RegisterDeviceToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	username := c.GetString("username")
	if err := h.users.SetDeviceToken(c.Request.Context(), username, req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device token registered"})
}

// ClearDeviceToken drops the caller's push token and turns notifications off.
func (h *SettingsHandler) ClearDeviceToken(c *gin.Context) {
	username := c.GetString("username")
	if err := h.users.ClearDeviceToken(c.Request.Context(), username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device token cleared"})
}
