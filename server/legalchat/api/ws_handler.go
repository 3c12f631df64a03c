package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	commonlog "legalchat/server/common/log"
	"legalchat/server/common/middleware"
	"legalchat/server/common/transport/httpresp"
	"legalchat/server/legalchat/domain"
	"legalchat/server/legalchat/service"
)

var notificationsUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (h *Handler) handleNotificationsWS(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrMissingBearerToken))
		return
	}
	userID, role, err := h.auth.ParseAuthContext(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrInvalidToken))
		return
	}

	conn, err := notificationsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		commonlog.Warnf("event=notification_ws action=upgrade status=failed user_id=%s error=%v", userID, err)
		return
	}

	client := &service.WSClient{
		ConnID: uuid.NewString(),
		UserID: userID,
		Admin:  role == string(domain.RoleAdmin),
		Conn:   conn,
	}
	client.WriteJSON(map[string]any{
		"type":        "notifications.connected",
		"userId":      userID,
		"role":        role,
		"connectedAt": time.Now().UTC(),
	})
	commonlog.Debugf("event=notification_ws action=connect status=ok conn_id=%s user_id=%s role=%s", client.ConnID, userID, role)
	h.hub.Serve(client)
}
