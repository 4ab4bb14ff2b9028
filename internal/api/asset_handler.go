package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/photo"
	"cvStudio/internal/storage"
)

// AssetHandler 负责照片上传与回显。
type AssetHandler struct {
	photos        PhotoUploader
	limiter       redisRateCounter
	uploadsPerDay int
}

func NewAssetHandler(photos PhotoUploader, limiter redisRateCounter, uploadsPerDay int) *AssetHandler {
	return &AssetHandler{photos: photos, limiter: limiter, uploadsPerDay: uploadsPerDay}
}

// POST /v1/assets/photo
// 表单字段 file。照片被裁剪缩放为 1280x1280 PNG 后存储，返回对象键。
func (h *AssetHandler) UploadPhoto(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, photo.MaxUploadBytes+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(c, http.StatusRequestEntityTooLarge, photo.ErrTooLarge.Error())
			return
		}
		BadRequest(c, "file is required")
		return
	}
	if file.Size > photo.MaxUploadBytes {
		Error(c, http.StatusRequestEntityTooLarge, photo.ErrTooLarge.Error())
		return
	}

	if h.limiter != nil && h.uploadsPerDay > 0 {
		key := fmt.Sprintf("rate:upload:%d:%s", session.UserID, time.Now().UTC().Format("20060102"))
		count, err := incrWithTTL(ctx, h.limiter, key, 24*time.Hour)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("upload rate counter unavailable", "error", err)
		} else if count > int64(h.uploadsPerDay) {
			TooManyRequests(c, "upload limit reached")
			return
		}
	}

	f, err := file.Open()
	if err != nil {
		BadRequest(c, "failed to read file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, photo.MaxUploadBytes+1))
	if err != nil {
		BadRequest(c, "failed to read file")
		return
	}

	key, err := h.photos.Upload(ctx, session.UserID, data)
	if err != nil {
		respondPhotoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key})
}

// GET /v1/assets/view?key=
// 只允许读取当前用户前缀下的对象。
func (h *AssetHandler) ViewPhoto(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		BadRequest(c, "key is required")
		return
	}
	if !storage.OwnedBy(key, session.UserID) {
		Forbidden(c, "forbidden")
		return
	}

	data, contentType, err := h.photos.Load(c.Request.Context(), key)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "asset not found")
			return
		}
		middleware.LoggerFromContext(c).Error("load asset failed", "error", err, "object_key", key)
		Internal(c, "failed to load asset")
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}
