package handler

import (
	"context"
	"net/http"

	"auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type NotificationServiceInterface interface {
	List(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

type NotificationHandler struct {
	service NotificationServiceInterface
}

func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ListHandler handles GET /notifications
func (h *NotificationHandler) ListHandler(c *gin.Context) {
	actor, ok := requireActor(c, "ListNotificationsHandler")
	if !ok {
		return
	}
	notifications, err := h.service.List(c.Request.Context(), actor.UserID)
	if err != nil {
		helpers.RespondError(c, "ListNotificationsHandler", err, map[string]any{"user_id": actor.UserID})
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	utils.JSONResponse(c, http.StatusOK, notifications, "notifications retrieved successfully")
}

// MarkReadHandler handles PATCH /notifications/:notification_id/read
func (h *NotificationHandler) MarkReadHandler(c *gin.Context) {
	actor, ok := requireActor(c, "MarkReadHandler")
	if !ok {
		return
	}
	notificationID := c.Param("notification_id")
	if err := h.service.MarkRead(c.Request.Context(), actor.UserID, notificationID); err != nil {
		helpers.RespondError(c, "MarkReadHandler", err, map[string]any{
			"user_id":         actor.UserID,
			"notification_id": notificationID,
		})
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"notification_id": notificationID, "is_read": true}, "notification marked as read")
}
