package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	commonauth "legalchat/server/common/auth"
	commonlog "legalchat/server/common/log"
	"legalchat/server/common/middleware"
	"legalchat/server/common/transport/httpresp"
	"legalchat/server/legalchat/domain"
	"legalchat/server/legalchat/service"
)

const readyTimeout = 3 * time.Second

type ReadyCheck func(ctx context.Context) error

type Handler struct {
	accounts      *service.AccountService
	chats         *service.ChatService
	files         *service.FileService
	notifications *service.NotificationService
	auth          *commonauth.Service
	hub           *service.Hub
	ready         map[string]ReadyCheck
	allowLegacy   bool
}

type Deps struct {
	Accounts      *service.AccountService
	Chats         *service.ChatService
	Files         *service.FileService
	Notifications *service.NotificationService
	Auth          *commonauth.Service
	Hub           *service.Hub
	ReadyChecks   map[string]ReadyCheck
	// AllowLegacyUserHeader lets chat and file routes authenticate with the
	// unsigned x-user-id header.
	AllowLegacyUserHeader bool
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		accounts:      deps.Accounts,
		chats:         deps.Chats,
		files:         deps.Files,
		notifications: deps.Notifications,
		auth:          deps.Auth,
		hub:           deps.Hub,
		ready:         deps.ReadyChecks,
		allowLegacy:   deps.AllowLegacyUserHeader,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/health/ready", h.healthReady)
	r.GET("/ws/notifications", h.handleNotificationsWS)

	api := r.Group("/api/v1")
	api.GET("/health", h.health)
	api.GET("/health/ready", h.healthReady)
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	api.POST("/auth/password/forgot", h.forgotPassword)
	api.POST("/auth/password/reset", h.resetPassword)
	api.POST("/admin/login", h.adminLogin)

	memberRoles := middleware.RequireRoles(string(domain.RoleUser), string(domain.RoleBlocked))
	contentAuth := middleware.AuthRequired(h.auth)
	if h.allowLegacy {
		contentAuth = middleware.AuthOrLegacyHeader(h.auth, h.legacyRole)
	}

	member := api.Group("")
	member.Use(middleware.AuthRequired(h.auth), memberRoles)
	{
		member.GET("/me", h.profile)
		member.PATCH("/me", h.updateProfile)
		member.PUT("/me/password", h.changePassword)
		member.DELETE("/me", h.deactivate)

		member.GET("/user/notifications", h.listUserNotifications)
		member.GET("/user/notifications/unread-count", h.userUnreadCount)
		member.POST("/user/notifications/unblock-request", h.requestUnblock)
		member.POST("/user/notifications/issue", h.reportIssue)
		member.POST("/user/notifications/:id/read", h.markUserNotificationRead)
		member.POST("/user/notifications/:id/reply", h.replyAsUser)
		member.DELETE("/user/notifications/:id", h.deleteUserNotification)
		member.DELETE("/user/notifications", h.deleteAllUserNotifications)
	}

	content := api.Group("")
	content.Use(contentAuth, memberRoles)
	{
		content.GET("/chats", h.listChats)
		content.POST("/chats", h.sendMessage)
		content.POST("/chats/copy", h.copyChat)
		content.GET("/chats/:id", h.getChat)
		content.PATCH("/chats/:id", h.renameChat)
		content.DELETE("/chats", h.deleteChat)
		content.DELETE("/chats/:id", h.deleteChat)
		content.GET("/shared/:id", h.getSharedChat)

		content.POST("/upload", h.uploadFile)
		content.GET("/files", h.listFiles)
		content.GET("/files/:fileId", h.getFile)
		content.GET("/files/:fileId/preview", h.previewFile)
		content.DELETE("/files/:fileId", h.deleteFile)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(h.auth), middleware.RequireRoles(string(domain.RoleAdmin)))
	{
		admin.GET("/users", h.listUsers)
		admin.GET("/users/:id", h.getUser)
		admin.POST("/users/:id/block", h.blockUser)
		admin.POST("/users/:id/unblock", h.unblockUser)
		admin.DELETE("/users/:id", h.deleteUser)
		admin.GET("/logs", h.listAdminLogs)

		admin.GET("/notifications", h.listAdminNotifications)
		admin.GET("/notifications/unread-count", h.adminUnreadCount)
		admin.POST("/notifications/send", h.sendNotification)
		admin.POST("/notifications/:id/read", h.markAdminNotificationRead)
		admin.POST("/notifications/:id/reply", h.replyAsAdmin)
		admin.DELETE("/notifications/:id", h.deleteAdminNotification)
		admin.DELETE("/notifications", h.deleteAllAdminNotifications)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) healthReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(h.ready))
	for name := range h.ready {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
	for _, name := range names {
		if err := h.ready[name](ctx); err != nil {
			commonlog.Warnf("event=health_ready action=check status=failed dependency=%s error=%v", name, err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	c.JSON(status, resp)
}

func (h *Handler) legacyRole(c *gin.Context, userID string) (string, bool) {
	account, err := h.accounts.GetUser(c.Request.Context(), userID)
	if err != nil {
		return "", false
	}
	return string(account.Role), true
}

func currentUserID(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return "", false
	}
	return userID, true
}
