package handlers

import (
	"github.com/gin-gonic/gin"

	"healthcare-companion-server/internal/services"
	"healthcare-companion-server/internal/utils"
)

// NotificationHandler serves the caller's in-app inbox.
type NotificationHandler struct {
	Notifications *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Notifications: svc}
}

// GetNotifications returns delivered notifications, newest first, with the
// unread count. Supports ?limit=.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	list, err := h.Notifications.List(c.Request.Context(), callerFrom(c), queryInt(c, "limit", 0))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Notifications fetched successfully", list)
}

// MarkNotificationAsRead marks one of the caller's notifications read.
func (h *NotificationHandler) MarkNotificationAsRead(c *gin.Context) {
	if err := h.Notifications.MarkRead(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Notification marked as read", nil)
}

// MarkAllAsRead marks every delivered notification read.
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	n, err := h.Notifications.MarkAllRead(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Notifications marked as read", gin.H{"updated": n})
}
