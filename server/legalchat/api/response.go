package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	commonlog "legalchat/server/common/log"
	"legalchat/server/common/transport/httpresp"
	"legalchat/server/legalchat/domain"
)

type ErrorResponse = httpresp.ErrorResponse
type OKResponse = httpresp.OKResponse
type CountResponse = httpresp.CountResponse
type TokenResponse = httpresp.TokenResponse

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type HistoryResponse struct {
	History []domain.ChatSession `json:"history"`
}

type ChatResponse struct {
	Chat domain.ChatSession `json:"chat"`
}

type FileResponse struct {
	File domain.File `json:"file"`
}

type FilesResponse struct {
	Files []domain.File `json:"files"`
}

type NotificationResponse struct {
	Notification domain.Notification `json:"notification"`
}

type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

type AccountResponse struct {
	Account domain.Account `json:"account"`
}

type UsersResponse struct {
	Users []domain.Account `json:"users"`
}

type AdminLogsResponse struct {
	Logs []domain.AdminLog `json:"logs"`
}

func NewTokenResponse(token string, account domain.Account) TokenResponse {
	return httpresp.NewTokenResponse(token, account.ID, string(account.Role), account.Name)
}

func writeError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		commonlog.Errorf("event=http_request action=handle status=failed method=%s path=%s error=%v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, httpresp.NewErrorResponse(message))
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAssistantUnavailable):
		return http.StatusBadGateway, httpresp.ErrAssistantFailed
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, httpresp.ErrNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, httpresp.ErrForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, httpresp.ErrConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, httpresp.ErrInvalidCredentials
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, httpresp.ErrInternal
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
}
