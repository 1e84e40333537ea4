package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/middleware"
	"github.com/yourorg/taskboard/internal/model"
)

// NotificationService is the notification surface the handler needs.
type NotificationService interface {
	List(ctx context.Context, userID int64, page, pageSize int) (*model.PagedNotificationResult, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int, error)
	Delete(ctx context.Context, userID, id int64) (bool, error)
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications NotificationService
	logger        *zap.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

// GetNotifications handles retrieving one page of the user's notifications
// GET /api/notification?page=&pageSize=
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID := middleware.UserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

	result, err := h.notifications.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("failed to get notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUnreadCount handles retrieving the unread notification count
// GET /api/notification/unread-count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID := middleware.UserID(c)

	count, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get unread count", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notification count"})
		return
	}

	c.JSON(http.StatusOK, count)
}

// MarkAsRead handles marking a notification as read; repeating the call for
// an already-read notification succeeds
// PATCH /api/notification/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID := middleware.UserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	found, err := h.notifications.MarkRead(c.Request.Context(), userID, id)
	if err != nil {
		h.logger.Error("failed to mark notification as read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllAsRead handles marking every notification of the user as read
// PATCH /api/notification/mark-all-read
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID := middleware.UserID(c)

	if _, err := h.notifications.MarkAllRead(c.Request.Context(), userID); err != nil {
		h.logger.Error("failed to mark all notifications as read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteNotification handles deleting a notification
// DELETE /api/notification/:id
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID := middleware.UserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	found, err := h.notifications.Delete(c.Request.Context(), userID, id)
	if err != nil {
		h.logger.Error("failed to delete notification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
