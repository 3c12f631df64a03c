package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legalchat/server/common/transport/httpresp"
	"legalchat/server/legalchat/service"
)

func (h *Handler) listChats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	chats, err := h.chats.ListChats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{History: chats})
}

func (h *Handler) getChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	chat, err := h.chats.GetChat(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Chat: chat})
}

func (h *Handler) getSharedChat(c *gin.Context) {
	chat, err := h.chats.GetSharedChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Chat: chat})
}

func (h *Handler) sendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req service.SendMessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	chat, err := h.chats.SendMessage(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Chat: chat})
}

func (h *Handler) renameChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	chat, err := h.chats.RenameChat(c.Request.Context(), userID, c.Param("id"), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Chat: chat})
}

func (h *Handler) deleteChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID := strings.TrimSpace(c.Param("id"))
	if chatID == "" {
		chatID = strings.TrimSpace(c.Query("id"))
	}
	if chatID == "" {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse("chat id is required"))
		return
	}
	if err := h.chats.DeleteChat(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewOKResponse())
}

func (h *Handler) copyChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		ChatID string `json:"chatId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	chat, err := h.chats.CopyChat(c.Request.Context(), userID, req.ChatID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Chat: chat})
}
