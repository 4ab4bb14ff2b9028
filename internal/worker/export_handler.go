package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cvStudio/internal/database"
	"cvStudio/internal/errcode"
	"cvStudio/internal/export"
	"cvStudio/internal/pipeline"
	"cvStudio/internal/resume"
	"cvStudio/internal/storage"
	"cvStudio/internal/tasks"
)

// Rasterizer 执行 Raster-Paginate 导出，通常是 *pipeline.Pipeline。
type Rasterizer interface {
	Raster(ctx context.Context, job pipeline.Job, templateKey string) (export.Artifact, pipeline.Result, error)
}

// Publisher 是 redis.Client 的发布子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ExportTaskHandler 消费 cv:export_pdf 任务。
type ExportTaskHandler struct {
	db        *gorm.DB
	store     storage.ObjectStore
	raster    Rasterizer
	publisher Publisher
	logger    *slog.Logger
}

func NewExportTaskHandler(db *gorm.DB, store storage.ObjectStore, raster Rasterizer, publisher Publisher, logger *slog.Logger) *ExportTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportTaskHandler{db: db, store: store, raster: raster, publisher: publisher, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	payload, err := tasks.DecodeExportPDF(t)
	if err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("cv_id", uint64(payload.CVID)),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)
	log.Info("export task started", slog.String("template_key", payload.TemplateKey))

	var cv database.CV
	if err := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", payload.CVID, payload.UserID).First(&cv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("cv not found, skipping task")
			return nil
		}
		return fmt.Errorf("query cv: %w", err)
	}

	defer func() {
		if retErr == nil {
			return
		}
		// 可重试错误只在最后一次尝试时通知
		if !errors.Is(retErr, asynq.SkipRetry) && !isFinalAttempt(ctx) {
			return
		}
		h.fail(ctx, log, cv, payload, retErr)
	}()

	doc, err := resume.Hydrate(payload.Document, resume.UserID(payload.UserID), nil)
	if err != nil {
		return fmt.Errorf("hydrate snapshot: %v: %w", err, asynq.SkipRetry)
	}

	artifact, result, err := h.raster.Raster(ctx, pipeline.Job{
		CVID:          payload.CVID,
		Document:      doc,
		PhotoKey:      payload.PhotoKey,
		OwnerName:     payload.OwnerName,
		CorrelationID: payload.CorrelationID,
		Options:       payload.Options,
	}, payload.TemplateKey)
	if err != nil {
		if permanent(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	key := storage.NewExportKey(payload.UserID, payload.CVID)
	if err := h.store.Put(ctx, key, artifact.PDF, "application/pdf"); err != nil {
		return fmt.Errorf("upload pdf: %w", err)
	}

	previous, err := h.swapPDF(ctx, cv.ID, key, artifact.Filename)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Info("cv deleted during export, discarding artifact", slog.String("object_key", key))
		if err := h.store.Delete(ctx, key); err != nil {
			log.Warn("delete orphaned pdf failed", slog.String("object_key", key), slog.Any("error", err))
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("update cv: %w", err)
	}
	if previous != "" && previous != key {
		if err := h.store.Delete(ctx, previous); err != nil {
			log.Warn("delete previous pdf failed", slog.String("object_key", previous), slog.Any("error", err))
		}
	}

	notify := ExportNotifyMessage{
		Status:        database.StatusCompleted,
		CVID:          payload.CVID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
		Pages:         artifact.Pages,
		Filename:      artifact.Filename,
	}
	if result.PhotoMissing {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "The photo could not be loaded and was left out of the PDF."
	}
	if err := h.publish(ctx, payload.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
	}

	log.Info("export task completed", slog.Int("pages", artifact.Pages), slog.String("object_key", key))
	return nil
}

// swapPDF 在行锁内读取当前 pdf_url 并替换为新产物，返回被替换的旧键。
// 重叠的导出各自只删除自己替换掉的那个对象。
func (h *ExportTaskHandler) swapPDF(ctx context.Context, cvID uint, key, filename string) (string, error) {
	var previous string
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current database.CV
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "pdf_url").
			First(&current, cvID).Error; err != nil {
			return err
		}
		previous = current.PdfUrl
		return tx.Model(&current).Updates(map[string]any{
			"pdf_url":           key,
			"pdf_filename":      filename,
			"status":            database.StatusCompleted,
			"last_export_error": "",
		}).Error
	})
	return previous, err
}

func (h *ExportTaskHandler) fail(ctx context.Context, log *slog.Logger, cv database.CV, payload tasks.ExportPDFPayload, cause error) {
	kind := export.KindFromError(cause)
	message := export.UserMessage(cause)

	if err := h.db.WithContext(ctx).Model(&cv).Updates(map[string]any{
		"status":            database.StatusFailed,
		"last_export_error": string(kind),
	}).Error; err != nil {
		log.Error("mark cv export failed", slog.Any("error", err))
	}

	notify := ExportNotifyMessage{
		Status:        "error",
		CVID:          payload.CVID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.ForExport(kind),
		ErrorKind:     string(kind),
		ErrorMessage:  strings.TrimSpace(message),
	}
	if err := h.publish(ctx, payload.UserID, notify); err != nil {
		log.Error("publish export error notification failed", slog.Any("error", err))
	}
	log.Warn("export task failed", slog.String("kind", string(kind)), slog.Any("error", cause))
}

func (h *ExportTaskHandler) publish(ctx context.Context, userID uint, notify ExportNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(userID)
	if err := h.publisher.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

// permanent 判断导出错误重试也不会成功。
func permanent(err error) bool {
	switch export.KindFromError(err) {
	case export.KindRenderTargetMissing, export.KindRasterizationFailed, export.KindAssemblyFailed:
		return true
	}
	return false
}

func isFinalAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return true
	}
	return retryCount >= maxRetry
}
