package handler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lorebase/lorebase/internal/pkg/errcode"
	"github.com/lorebase/lorebase/internal/pkg/response"
	"github.com/lorebase/lorebase/internal/service"
)

type DocumentHandler struct {
	ingest *service.IngestService
}

func NewDocumentHandler(ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest}
}

// Upload accepts a multipart document, runs the full ingest pipeline and
// returns the stored document. The upload is staged to a temp file first;
// extraction libraries want a real path.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	tempDir, err := os.MkdirTemp("", "lorebase-upload-*")
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to stage upload")
		return
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("failed to remove temp upload", zap.Error(err))
		}
	}()
	tempPath := filepath.Join(tempDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to stage upload")
		return
	}

	doc, err := h.ingest.Ingest(c.Request.Context(), getUserID(c), service.IngestInput{
		Path:     tempPath,
		FileName: filepath.Base(file.Filename),
		Title:    c.PostForm("title"),
		Author:   c.PostForm("author"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.ingest.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.ingest.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	chunks, err := h.ingest.Chunks(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chunks)
}

// Download streams the archived original upload back to its owner.
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, rc, err := h.ingest.OpenOriginal(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logutil.GetLogger(c.Request.Context()).Warn("failed to stream archived upload",
			zap.String("doc_id", doc.ID), zap.Error(err))
	}
}

type documentMetaRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

func (h *DocumentHandler) Update(c *gin.Context) {
	var req documentMetaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.ingest.UpdateMeta(c.Request.Context(), getUserID(c), c.Param("id"), req.Title, req.Author); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type selectRequest struct {
	Selected bool `json:"selected"`
}

func (h *DocumentHandler) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.ingest.SetSelected(c.Request.Context(), getUserID(c), c.Param("id"), req.Selected); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.ingest.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
