package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/auth"
	"cvStudio/internal/database"
	"cvStudio/internal/photo"
	"cvStudio/internal/resume"
	"cvStudio/internal/storage"
	"cvStudio/internal/templates"
)

// PhotoUploader 是 *photo.Service 的上传与读取子集。
type PhotoUploader interface {
	Upload(ctx context.Context, userID uint, data []byte) (string, error)
	Load(ctx context.Context, key string) ([]byte, string, error)
}

// Previewer 渲染编辑器预览。
type Previewer interface {
	Preview(ctx context.Context, doc resume.Document, photoKey string, includeColors bool) (templates.Rendered, error)
}

// CVHandler 负责简历的增删改查与预览。
type CVHandler struct {
	db        *gorm.DB
	photos    PhotoUploader
	previewer Previewer
	resolver  TemplateResolver
	maxCVs    int
}

func NewCVHandler(db *gorm.DB, photos PhotoUploader, previewer Previewer, resolver TemplateResolver, maxCVs int) *CVHandler {
	return &CVHandler{db: db, photos: photos, previewer: previewer, resolver: resolver, maxCVs: maxCVs}
}

var errInvalidCVID = errors.New("invalid cv id")

type cvListItem struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	TemplateID string    `json:"template_id"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type cvResponse struct {
	ID              uint            `json:"id"`
	Title           string          `json:"title"`
	TemplateID      string          `json:"template_id"`
	Document        json.RawMessage `json:"document"`
	Status          string          `json:"status"`
	LastExportError string          `json:"last_export_error,omitempty"`
	HasPDF          bool            `json:"has_pdf"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type saveCVRequest struct {
	Document json.RawMessage `json:"document" binding:"required"`
}

func sessionFromContext(c *gin.Context) (auth.Session, bool) {
	return middleware.SessionFromContext(c)
}

// ListCVs 返回当前用户的全部简历，最近修改的在前。
func (h *CVHandler) ListCVs(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var cvs []database.CV
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", session.UserID).
		Order("updated_at DESC").
		Find(&cvs).Error; err != nil {
		Internal(c, "failed to list cvs")
		return
	}

	items := make([]cvListItem, 0, len(cvs))
	for _, cv := range cvs {
		items = append(items, cvListItem{
			ID:         cv.ID,
			Title:      cv.Title,
			TemplateID: cv.TemplateID,
			Status:     cv.Status,
			UpdatedAt:  cv.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// CreateCV 创建一份空简历，未选择模板。
func (h *CVHandler) CreateCV(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	if err := ensureUser(ctx, h.db, session); err != nil {
		Internal(c, "failed to register user")
		return
	}

	if h.maxCVs > 0 {
		var count int64
		if err := h.db.WithContext(ctx).Model(&database.CV{}).Where("user_id = ?", session.UserID).Count(&count).Error; err != nil {
			Internal(c, "failed to count cvs")
			return
		}
		if count >= int64(h.maxCVs) {
			Forbidden(c, "cv limit reached")
			return
		}
	}

	doc := resume.New(resume.UserID(session.UserID))
	if title := strings.TrimSpace(c.Query("title")); title != "" {
		doc = doc.SetTitle(title)
	}
	content, err := doc.Encode()
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}

	cv := database.CV{
		Title:   doc.Title,
		Content: datatypes.JSON(content),
		UserID:  session.UserID,
		Status:  database.StatusDraft,
	}
	if err := h.db.WithContext(ctx).Create(&cv).Error; err != nil {
		Internal(c, "failed to create cv")
		return
	}
	c.JSON(http.StatusCreated, newCVResponse(cv, content))
}

// GetCV 返回规范化后的文档。
func (h *CVHandler) GetCV(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	cv, err := loadCV(c.Request.Context(), h.db, c.Param("id"), session.UserID)
	if err != nil {
		respondLoadError(c, err)
		return
	}
	doc, err := hydrate(cv)
	if err != nil {
		Internal(c, "failed to decode cv")
		return
	}
	content, err := doc.Encode()
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}
	c.JSON(http.StatusOK, newCVResponse(*cv, content))
}

// UpdateCV 覆盖保存文档。支持 JSON，或 multipart 的 document 字段加可选 photo 文件。
func (h *CVHandler) UpdateCV(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	cv, err := loadCV(ctx, h.db, c.Param("id"), session.UserID)
	if err != nil {
		respondLoadError(c, err)
		return
	}

	raw, pending, err := readSaveRequest(c)
	if err != nil {
		if errors.Is(err, photo.ErrTooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		BadRequest(c, err.Error())
		return
	}

	doc, err := resume.Hydrate(raw, resume.UserID(session.UserID), resume.UUIDGenerator)
	if err != nil {
		BadRequest(c, "invalid document")
		return
	}
	// 模板只能为空或已注册的键
	if doc.TemplateID != "" {
		res, err := h.resolver.ForDocument(ctx, doc)
		if err != nil {
			middleware.LoggerFromContext(c).Error("resolve template failed", "error", err)
			Internal(c, "failed to resolve template")
			return
		}
		if !res.Found {
			BadRequest(c, "unknown template")
			return
		}
	}
	if len(pending) > 0 {
		doc = doc.SetPhoto(resume.PendingPhoto(pending))
	}

	if doc.PersonalInfo.Photo.IsPending() {
		key, err := h.photos.Upload(ctx, session.UserID, doc.PersonalInfo.Photo.Pending())
		if err != nil {
			respondPhotoError(c, err)
			return
		}
		doc = doc.SetPhoto(resume.PhotoRef(key))
	}
	if ref := doc.PersonalInfo.Photo.Ref(); ref != "" && !storage.OwnedBy(ref, session.UserID) {
		Forbidden(c, "photo does not belong to user")
		return
	}

	content, err := doc.Encode()
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}

	if err := h.db.WithContext(ctx).Model(cv).Updates(map[string]any{
		"title":       doc.Title,
		"template_id": string(doc.TemplateID),
		"content":     datatypes.JSON(content),
		"photo_key":   doc.PersonalInfo.Photo.Ref(),
	}).Error; err != nil {
		Internal(c, "failed to update cv")
		return
	}
	if err := h.db.WithContext(ctx).First(cv, cv.ID).Error; err != nil {
		Internal(c, "failed to reload cv")
		return
	}
	c.JSON(http.StatusOK, newCVResponse(*cv, content))
}

// DeleteCV 删除简历。
func (h *CVHandler) DeleteCV(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	cv, err := loadCV(ctx, h.db, c.Param("id"), session.UserID)
	if err != nil {
		respondLoadError(c, err)
		return
	}
	if err := h.db.WithContext(ctx).Delete(&database.CV{}, cv.ID).Error; err != nil {
		Internal(c, "failed to delete cv")
		return
	}
	c.Status(http.StatusNoContent)
}

// Preview 返回渲染后的 HTML；colors=false 时使用灰度配色。
func (h *CVHandler) Preview(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	cv, err := loadCV(ctx, h.db, c.Param("id"), session.UserID)
	if err != nil {
		respondLoadError(c, err)
		return
	}
	doc, err := hydrate(cv)
	if err != nil {
		Internal(c, "failed to decode cv")
		return
	}

	includeColors := true
	if v := c.Query("colors"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			includeColors = parsed
		}
	}

	rendered, err := h.previewer.Preview(ctx, doc, cv.PhotoKey, includeColors)
	if err != nil {
		middleware.LoggerFromContext(c).Error("render preview failed", "error", err)
		Internal(c, "failed to render preview")
		return
	}
	if rendered.Placeholder {
		c.Header("X-CV-Placeholder", "true")
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", rendered.HTML)
}

func readSaveRequest(c *gin.Context) (json.RawMessage, []byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		raw := c.PostForm("document")
		if strings.TrimSpace(raw) == "" {
			return nil, nil, errors.New("missing document")
		}
		file, err := c.FormFile("photo")
		if errors.Is(err, http.ErrMissingFile) {
			return json.RawMessage(raw), nil, nil
		}
		if err != nil {
			return nil, nil, errors.New("invalid photo")
		}
		if file.Size > photo.MaxUploadBytes {
			return nil, nil, photo.ErrTooLarge
		}
		f, err := file.Open()
		if err != nil {
			return nil, nil, errors.New("invalid photo")
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, photo.MaxUploadBytes+1))
		if err != nil {
			return nil, nil, errors.New("invalid photo")
		}
		return json.RawMessage(raw), data, nil
	}

	var req saveCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, nil, err
	}
	return req.Document, nil, nil
}

// ensureUser 为首次出现的令牌用户建档，之后只更新显示名。
func ensureUser(ctx context.Context, db *gorm.DB, session auth.Session) error {
	user := database.User{
		Model:       gorm.Model{ID: session.UserID},
		Username:    "user-" + strconv.FormatUint(uint64(session.UserID), 10),
		DisplayName: session.DisplayName,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name"}),
	}).Create(&user).Error
}

func loadCV(ctx context.Context, db *gorm.DB, idParam string, userID uint) (*database.CV, error) {
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil || id == 0 {
		return nil, errInvalidCVID
	}
	var cv database.CV
	if err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", uint(id), userID).
		First(&cv).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func hydrate(cv *database.CV) (resume.Document, error) {
	doc, err := resume.Hydrate(cv.Content, resume.UserID(cv.UserID), resume.UUIDGenerator)
	if err != nil {
		return resume.Document{}, err
	}
	return doc, nil
}

func respondLoadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidCVID):
		BadRequest(c, "invalid cv id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "cv not found")
	default:
		Internal(c, "failed to query cv")
	}
}

func respondPhotoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, photo.ErrTooSmall), errors.Is(err, photo.ErrUnsupported):
		BadRequest(c, err.Error())
	case errors.Is(err, photo.ErrTooLarge):
		Error(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, photo.ErrInfected):
		BadRequest(c, "malicious file detected")
	default:
		middleware.LoggerFromContext(c).Error("store photo failed", "error", err)
		Internal(c, "failed to store photo")
	}
}

func newCVResponse(cv database.CV, content []byte) cvResponse {
	return cvResponse{
		ID:              cv.ID,
		Title:           cv.Title,
		TemplateID:      cv.TemplateID,
		Document:        json.RawMessage(content),
		Status:          cv.Status,
		LastExportError: cv.LastExportError,
		HasPDF:          cv.PdfUrl != "",
		CreatedAt:       cv.CreatedAt,
		UpdatedAt:       cv.UpdatedAt,
	}
}
