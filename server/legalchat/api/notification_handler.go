package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"legalchat/server/common/middleware"
	"legalchat/server/common/transport/httpresp"
	"legalchat/server/legalchat/domain"
)

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) listUserNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	items, err := h.notifications.UserInbox(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NotificationsResponse{Notifications: items})
}

func (h *Handler) userUnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	count, err := h.notifications.UserUnreadCount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewCountResponse(count))
}

func (h *Handler) markUserNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkUserRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewOKResponse())
}

func (h *Handler) deleteUserNotification(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.notifications.DeleteUserNotification(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewOKResponse())
}

func (h *Handler) deleteAllUserNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	count, err := h.notifications.DeleteAllUserNotifications(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewCountResponse(count))
}

func (h *Handler) replyAsUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.notifications.UserReply(c.Request.Context(), userID, c.Param("id"), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NotificationResponse{Notification: n})
}

func (h *Handler) requestUnblock(c *gin.Context) {
	h.submitUserNotification(c, h.notifications.RequestUnblock)
}

func (h *Handler) reportIssue(c *gin.Context) {
	h.submitUserNotification(c, h.notifications.ReportIssue)
}

func (h *Handler) submitUserNotification(c *gin.Context, submit func(ctx context.Context, userID, message string) (domain.Notification, error)) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := submit(c.Request.Context(), userID, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NotificationResponse{Notification: n})
}

func (h *Handler) listAdminNotifications(c *gin.Context) {
	items, err := h.notifications.AdminFeed(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NotificationsResponse{Notifications: items})
}

func (h *Handler) adminUnreadCount(c *gin.Context) {
	count, err := h.notifications.AdminUnreadCount(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewCountResponse(count))
}

func (h *Handler) markAdminNotificationRead(c *gin.Context) {
	if err := h.notifications.MarkAdminRead(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewOKResponse())
}

func (h *Handler) deleteAdminNotification(c *gin.Context) {
	if err := h.notifications.DeleteAdminNotification(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewOKResponse())
}

func (h *Handler) deleteAllAdminNotifications(c *gin.Context) {
	count, err := h.notifications.DeleteAllAdminNotifications(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewCountResponse(count))
}

func (h *Handler) replyAsAdmin(c *gin.Context) {
	adminID, _ := middleware.UserIDFrom(c)
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.notifications.AdminReply(c.Request.Context(), adminID, c.Param("id"), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NotificationResponse{Notification: n})
}

func (h *Handler) sendNotification(c *gin.Context) {
	adminID, _ := middleware.UserIDFrom(c)
	var req struct {
		UserID  string                  `json:"userId" binding:"required"`
		Type    domain.NotificationType `json:"type" binding:"required"`
		Message string                  `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.notifications.SendToUser(c.Request.Context(), adminID, req.UserID, req.Type, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NotificationResponse{Notification: n})
}
