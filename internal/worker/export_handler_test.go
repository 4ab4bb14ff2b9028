package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvStudio/internal/database"
	"cvStudio/internal/errcode"
	"cvStudio/internal/export"
	"cvStudio/internal/pipeline"
	"cvStudio/internal/resume"
	"cvStudio/internal/storage"
	"cvStudio/internal/tasks"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStore() *memoryStore { return &memoryStore{objects: map[string][]byte{}} }

func (m *memoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(data)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return data, "application/pdf", nil
}

func (m *memoryStore) PresignDownload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + key, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

type recordingPublisher struct {
	channels []string
	messages []ExportNotifyMessage
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	var msg ExportNotifyMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, msg)
	return redis.NewIntResult(1, nil)
}

type rasterFunc func(job pipeline.Job, key string) (export.Artifact, pipeline.Result, error)

func (f rasterFunc) Raster(_ context.Context, job pipeline.Job, key string) (export.Artifact, pipeline.Result, error) {
	return f(job, key)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCV(t *testing.T, db *gorm.DB, previousPDF string) database.CV {
	t.Helper()
	cv := database.CV{Title: "CV", UserID: 5, Status: database.StatusExporting, PdfUrl: previousPDF}
	if err := db.Create(&cv).Error; err != nil {
		t.Fatalf("seed cv: %v", err)
	}
	return cv
}

func exportTask(t *testing.T, cvID uint) *asynq.Task {
	t.Helper()
	doc := resume.New(5).SetPersonal(resume.PersonalName, "Grace")
	raw, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	task, err := tasks.NewExportPDFTask(tasks.ExportPDFPayload{
		CVID:          cvID,
		UserID:        5,
		TemplateID:    "1",
		TemplateKey:   "classic",
		OwnerName:     "Grace",
		Document:      raw,
		Options:       export.DefaultOptions(),
		CorrelationID: "corr-1",
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestProcessTaskStoresArtifactAndNotifies(t *testing.T) {
	db := newTestDB(t)
	cv := seedCV(t, db, "exports/5/1/old.pdf")
	store := newMemoryStore()
	pub := &recordingPublisher{}

	var gotKey string
	var gotJob pipeline.Job
	raster := rasterFunc(func(job pipeline.Job, key string) (export.Artifact, pipeline.Result, error) {
		gotJob, gotKey = job, key
		return export.Artifact{Filename: "CV_Grace_2026-10-14.pdf", Pages: 2, PDF: []byte("%PDF-1.3")}, pipeline.Result{}, nil
	})

	h := NewExportTaskHandler(db, store, raster, pub, nil)
	if err := h.ProcessTask(context.Background(), exportTask(t, cv.ID)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if gotKey != "classic" || gotJob.Document.PersonalInfo.Name != "Grace" || gotJob.Document.Owner != 5 {
		t.Fatalf("snapshot not passed through: key=%q job=%+v", gotKey, gotJob)
	}

	var updated database.CV
	if err := db.First(&updated, cv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != database.StatusCompleted || updated.PdfFilename != "CV_Grace_2026-10-14.pdf" {
		t.Fatalf("unexpected cv state: %+v", updated)
	}
	if _, ok := store.objects[updated.PdfUrl]; !ok || !strings.HasPrefix(updated.PdfUrl, "exports/5/") {
		t.Fatalf("artifact not stored under %q", updated.PdfUrl)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "exports/5/1/old.pdf" {
		t.Fatalf("previous pdf not removed: %v", store.deleted)
	}

	if len(pub.messages) != 1 || pub.channels[0] != "user_notify:5" {
		t.Fatalf("unexpected notifications: %v %+v", pub.channels, pub.messages)
	}
	if msg := pub.messages[0]; msg.Status != "completed" || msg.Pages != 2 || msg.ErrorCode != errcode.OK {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestOverlappingExportsKeepLatestArtifact(t *testing.T) {
	db := newTestDB(t)
	cv := seedCV(t, db, "exports/5/1/old.pdf")
	store := newMemoryStore()
	pub := &recordingPublisher{}

	var h *ExportTaskHandler
	runs := 0
	raster := rasterFunc(func(job pipeline.Job, key string) (export.Artifact, pipeline.Result, error) {
		runs++
		if runs == 1 {
			// 第一次导出渲染期间，第二次导出完整跑完
			if err := h.ProcessTask(context.Background(), exportTask(t, cv.ID)); err != nil {
				t.Fatalf("inner process: %v", err)
			}
		}
		return export.Artifact{Filename: "CV_Grace.pdf", Pages: 1, PDF: []byte("%PDF-1.3")}, pipeline.Result{}, nil
	})
	h = NewExportTaskHandler(db, store, raster, pub, nil)

	if err := h.ProcessTask(context.Background(), exportTask(t, cv.ID)); err != nil {
		t.Fatalf("outer process: %v", err)
	}

	var updated database.CV
	if err := db.First(&updated, cv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := store.objects[updated.PdfUrl]; !ok {
		t.Fatalf("current pdf %q missing from store", updated.PdfUrl)
	}
	if len(store.objects) != 1 {
		t.Fatalf("orphaned artifacts left behind: %v", store.objects)
	}
	if len(store.deleted) != 2 || store.deleted[0] != "exports/5/1/old.pdf" {
		t.Fatalf("unexpected deletions: %v", store.deleted)
	}
}

func TestProcessTaskDiscardsArtifactOfCVDeletedMidExport(t *testing.T) {
	db := newTestDB(t)
	cv := seedCV(t, db, "")
	store := newMemoryStore()
	raster := rasterFunc(func(job pipeline.Job, key string) (export.Artifact, pipeline.Result, error) {
		if err := db.Delete(&database.CV{}, cv.ID).Error; err != nil {
			t.Fatalf("delete cv: %v", err)
		}
		return export.Artifact{Filename: "CV_Grace.pdf", Pages: 1, PDF: []byte("%PDF-1.3")}, pipeline.Result{}, nil
	})

	h := NewExportTaskHandler(db, store, raster, &recordingPublisher{}, nil)
	if err := h.ProcessTask(context.Background(), exportTask(t, cv.ID)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(store.objects) != 0 || len(store.deleted) != 1 {
		t.Fatalf("artifact of deleted cv kept: objects=%v deleted=%v", store.objects, store.deleted)
	}
}

func TestProcessTaskPermanentFailure(t *testing.T) {
	db := newTestDB(t)
	cv := seedCV(t, db, "")
	store := newMemoryStore()
	pub := &recordingPublisher{}

	raster := rasterFunc(func(pipeline.Job, string) (export.Artifact, pipeline.Result, error) {
		return export.Artifact{}, pipeline.Result{}, export.NewError(export.KindRenderTargetMissing, "preview root not found", nil)
	})

	err := NewExportTaskHandler(db, store, raster, pub, nil).ProcessTask(context.Background(), exportTask(t, cv.ID))
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, export.ErrRenderTargetMissing) {
		t.Fatalf("expected skip-retry render target error, got %v", err)
	}
	if len(store.objects) != 0 {
		t.Fatalf("nothing should be stored")
	}

	var updated database.CV
	if err := db.First(&updated, cv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != database.StatusFailed || updated.LastExportError != string(export.KindRenderTargetMissing) {
		t.Fatalf("unexpected cv state: %+v", updated)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(pub.messages))
	}
	if msg := pub.messages[0]; msg.Status != "error" || msg.ErrorCode != errcode.RenderTargetMissing || msg.ErrorMessage != export.MsgNoTemplateSelected {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestProcessTaskPhotoMissingStillCompletes(t *testing.T) {
	db := newTestDB(t)
	cv := seedCV(t, db, "")
	pub := &recordingPublisher{}

	raster := rasterFunc(func(pipeline.Job, string) (export.Artifact, pipeline.Result, error) {
		return export.Artifact{Filename: "CV.pdf", Pages: 1, PDF: []byte("%PDF")}, pipeline.Result{PhotoMissing: true}, nil
	})

	if err := NewExportTaskHandler(db, newMemoryStore(), raster, pub, nil).ProcessTask(context.Background(), exportTask(t, cv.ID)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if msg := pub.messages[0]; msg.Status != "completed" || msg.ErrorCode != errcode.ResourceMissing {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestProcessTaskSkipsDeletedCV(t *testing.T) {
	db := newTestDB(t)
	called := false
	raster := rasterFunc(func(pipeline.Job, string) (export.Artifact, pipeline.Result, error) {
		called = true
		return export.Artifact{}, pipeline.Result{}, nil
	})

	if err := NewExportTaskHandler(db, newMemoryStore(), raster, &recordingPublisher{}, nil).ProcessTask(context.Background(), exportTask(t, 999)); err != nil {
		t.Fatalf("expected nil for missing cv, got %v", err)
	}
	if called {
		t.Fatalf("raster must not run for a deleted cv")
	}
}

func TestProcessTaskRejectsBadPayload(t *testing.T) {
	h := NewExportTaskHandler(newTestDB(t), newMemoryStore(), nil, &recordingPublisher{}, nil)
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeExportPDF, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
