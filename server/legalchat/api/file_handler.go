package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"legalchat/server/common/transport/httpresp"
	"legalchat/server/legalchat/service"
)

const multipartOverhead = 1 << 20

func (h *Handler) uploadFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxUploadBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, httpresp.NewErrorResponse(fmt.Sprintf("file exceeds %d bytes", service.MaxUploadBytes)))
			return
		}
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse("multipart field \"file\" is required"))
		return
	}
	src, err := header.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, service.MaxUploadBytes+1))
	if err != nil {
		writeError(c, err)
		return
	}

	f, err := h.files.Upload(c.Request.Context(), userID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, FileResponse{File: f})
}

func (h *Handler) listFiles(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	files, err := h.files.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, FilesResponse{Files: files})
}

func (h *Handler) getFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	f, err := h.files.Get(c.Request.Context(), userID, c.Param("fileId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, FileResponse{File: f})
}

func (h *Handler) previewFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	data, contentType, err := h.files.Preview(c.Request.Context(), userID, c.Param("fileId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) deleteFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.files.Delete(c.Request.Context(), userID, c.Param("fileId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewOKResponse())
}
