package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/bookshare/internal/middleware"
	"github.com/lalith-99/bookshare/internal/storage"
	"go.uber.org/zap"
)

// UploadHandler stores avatar and cover images. It answers 503 when no
// object store is configured.
type UploadHandler struct {
	store    storage.ObjectStore
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

func NewUploadHandler(store storage.ObjectStore, maxBytes int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{store: store, maxBytes: maxBytes, logger: logger, now: time.Now}
}

// Upload handles POST /v1/uploads (multipart: file, type=profile|book)
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured", "code": "unavailable"})
		return
	}

	// Leave room for the multipart framing around the file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)

	kind, ok := storage.ParseKind(c.PostForm("type"))
	if !ok {
		badRequest(c, "type must be profile or book")
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if header.Size > h.maxBytes {
		badRequest(c, "file is too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		badRequest(c, "only images can be uploaded")
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, h.logger, err, "upload failed")
		return
	}
	defer f.Close()

	key := storage.ObjectKey(kind, header.Filename, h.now())
	if err := h.store.Put(c.Request.Context(), key, f, header.Size, contentType); err != nil {
		respondError(c, h.logger, err, "upload failed")
		return
	}

	h.logger.Info("image uploaded",
		zap.String("key", key),
		zap.Int64("size", header.Size),
		zap.String("user_id", middleware.GetUserID(c).String()),
	)
	c.JSON(http.StatusOK, gin.H{"url": h.store.URL(key)})
}
