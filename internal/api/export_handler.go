package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/auth"
	"cvStudio/internal/database"
	"cvStudio/internal/entitlement"
	"cvStudio/internal/export"
	"cvStudio/internal/pipeline"
	"cvStudio/internal/resume"
	"cvStudio/internal/storage"
	"cvStudio/internal/tasks"
	"cvStudio/internal/templates"
)

// Printer 执行同步的 Print-Frame 导出，通常是 *pipeline.Pipeline。
type Printer interface {
	Print(ctx context.Context, job pipeline.Job) (export.PrintResult, pipeline.Result, error)
}

// TemplateResolver 是 *templates.Resolver 的解析子集。
type TemplateResolver interface {
	ForDocument(ctx context.Context, doc resume.Document) (templates.Resolution, error)
}

// Authorizer 是 *entitlement.Gate 的判定子集。
type Authorizer interface {
	Authorize(ctx context.Context, session auth.Session, templateID resume.TemplateID) error
}

// Enqueuer 是 *asynq.Client 的入队子集。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExportHandler 负责两种导出入口与下载链接。
type ExportHandler struct {
	db         *gorm.DB
	resolver   TemplateResolver
	gate       Authorizer
	printer    Printer
	enqueuer   Enqueuer
	store      storage.ObjectStore
	limiter    redisRateCounter
	perHour    int
	presignTTL time.Duration
}

// ExportHandlerConfig 汇总 ExportHandler 的依赖。
type ExportHandlerConfig struct {
	DB             *gorm.DB
	Resolver       TemplateResolver
	Gate           Authorizer
	Printer        Printer
	Enqueuer       Enqueuer
	Store          storage.ObjectStore
	Limiter        redisRateCounter
	ExportsPerHour int
	PresignTTL     time.Duration
}

func NewExportHandler(cfg ExportHandlerConfig) *ExportHandler {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ExportHandler{
		db:         cfg.DB,
		resolver:   cfg.Resolver,
		gate:       cfg.Gate,
		printer:    cfg.Printer,
		enqueuer:   cfg.Enqueuer,
		store:      cfg.Store,
		limiter:    cfg.Limiter,
		perHour:    cfg.ExportsPerHour,
		presignTTL: ttl,
	}
}

// exportSnapshot 是导出调用开始时固定下来的输入，后续对简历的修改不影响它。
type exportSnapshot struct {
	cv         *database.CV
	doc        resume.Document
	resolution templates.Resolution
	options    export.Options
}

// prepare 加载简历、解析模板并做授权判定。失败时已写出响应。
// 未选择模板的文档直接以 RenderTargetMissing 失败，不经过授权判定。
func (h *ExportHandler) prepare(c *gin.Context, session auth.Session) (exportSnapshot, bool) {
	ctx := c.Request.Context()

	opts := export.DefaultOptions()
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "invalid export options")
		return exportSnapshot{}, false
	}
	opts = opts.Normalize()

	cv, err := loadCV(ctx, h.db, c.Param("id"), session.UserID)
	if err != nil {
		respondLoadError(c, err)
		return exportSnapshot{}, false
	}
	doc, err := hydrate(cv)
	if err != nil {
		Internal(c, "failed to decode cv")
		return exportSnapshot{}, false
	}

	res, err := h.resolver.ForDocument(ctx, doc)
	if err != nil {
		middleware.LoggerFromContext(c).Error("resolve template failed", "error", err)
		Internal(c, "failed to resolve template")
		return exportSnapshot{}, false
	}
	if !res.Found {
		ExportFailed(c, export.NewError(export.KindRenderTargetMissing, "no template selected", nil))
		return exportSnapshot{}, false
	}

	if err := h.gate.Authorize(ctx, session, doc.TemplateID); err != nil {
		if errors.Is(err, entitlement.ErrPaymentRequired) {
			PaymentRequired(c, "payment required")
			return exportSnapshot{}, false
		}
		Internal(c, "failed to check entitlement")
		return exportSnapshot{}, false
	}

	return exportSnapshot{cv: cv, doc: doc, resolution: res, options: opts}, true
}

func ownerName(doc resume.Document, session auth.Session) string {
	if name := strings.TrimSpace(doc.PersonalInfo.Name); name != "" {
		return name
	}
	return session.DisplayName
}

// POST /v1/cv/:id/export/print
// 同步打印，PDF 以 inline 方式返回给客户端打印对话框，不做存储。
func (h *ExportHandler) ExportPrint(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	snap, ok := h.prepare(c, session)
	if !ok {
		return
	}

	result, info, err := h.printer.Print(c.Request.Context(), pipeline.Job{
		CVID:          snap.cv.ID,
		Document:      snap.doc,
		PhotoKey:      snap.cv.PhotoKey,
		OwnerName:     ownerName(snap.doc, session),
		CorrelationID: middleware.GetCorrelationID(c),
		Options:       snap.options,
	})
	if err != nil {
		ExportFailed(c, err)
		return
	}
	if info.PhotoMissing {
		c.Header("X-CV-Photo-Missing", "true")
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

// POST /v1/cv/:id/export/pdf
// 以入队时刻的文档与模板键生成任务，worker 完成后通过 WebSocket 通知。
func (h *ExportHandler) ExportPDF(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	snap, ok := h.prepare(c, session)
	if !ok {
		return
	}

	if h.limiter != nil && h.perHour > 0 {
		key := fmt.Sprintf("rate:export:%d:%s", session.UserID, time.Now().UTC().Format("2006010215"))
		count, err := incrWithTTL(ctx, h.limiter, key, time.Hour)
		if err != nil {
			logger.Warn("export rate counter unavailable", "error", err)
		} else if count > int64(h.perHour) {
			TooManyRequests(c, "too many exports, try again later")
			return
		}
	}

	content, err := snap.doc.Encode()
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}
	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewExportPDFTask(tasks.ExportPDFPayload{
		CVID:          snap.cv.ID,
		UserID:        session.UserID,
		TemplateID:    string(snap.doc.TemplateID),
		TemplateKey:   snap.resolution.Key,
		OwnerName:     ownerName(snap.doc, session),
		Document:      content,
		PhotoKey:      snap.cv.PhotoKey,
		Options:       snap.options,
		CorrelationID: correlationID,
	})
	if err != nil {
		Internal(c, "failed to create export task")
		return
	}

	// 先置状态再入队，避免 worker 完成后被覆盖回 exporting
	if err := h.db.WithContext(ctx).Model(snap.cv).Updates(map[string]any{
		"status":            database.StatusExporting,
		"last_export_error": "",
	}).Error; err != nil {
		Internal(c, "failed to update cv status")
		return
	}

	info, err := h.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		logger.Error("enqueue export task failed", "error", err)
		_ = h.db.WithContext(ctx).Model(snap.cv).Update("status", database.StatusFailed).Error
		Internal(c, "failed to enqueue export task")
		return
	}
	logger.Info("export task enqueued",
		"cv_id", snap.cv.ID,
		"template_id", snap.doc.TemplateID,
		"task_id", info.ID,
	)

	c.JSON(http.StatusAccepted, gin.H{
		"status":         database.StatusExporting,
		"task_id":        info.ID,
		"correlation_id": correlationID,
	})
}

// GET /v1/cv/:id/download-link
func (h *ExportHandler) DownloadLink(c *gin.Context) {
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
	if cv.Status != database.StatusCompleted || cv.PdfUrl == "" {
		Conflict(c, "pdf not ready")
		return
	}

	url, err := h.store.PresignDownload(ctx, cv.PdfUrl, cv.PdfFilename, h.presignTTL)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign download failed", "error", err)
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"filename":   cv.PdfFilename,
		"expires_in": int(h.presignTTL.Seconds()),
	})
}
