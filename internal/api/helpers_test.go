package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/auth"
	"cvStudio/internal/database"
	"cvStudio/internal/resume"
	"cvStudio/internal/storage"
	"cvStudio/internal/templates"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedTemplates(t *testing.T, db *gorm.DB) *templates.Resolver {
	t.Helper()
	if _, err := templates.Seed(context.Background(), db); err != nil {
		t.Fatalf("seed templates: %v", err)
	}
	return templates.NewResolver(templates.MustRegistry(), templates.NewDBCatalog(db))
}

func seedCV(t *testing.T, db *gorm.DB, userID uint, doc resume.Document) database.CV {
	t.Helper()
	content, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cv := database.CV{
		Title:      doc.Title,
		TemplateID: string(doc.TemplateID),
		Content:    datatypes.JSON(content),
		PhotoKey:   doc.PersonalInfo.Photo.Ref(),
		UserID:     userID,
		Status:     database.StatusDraft,
	}
	if err := db.Create(&cv).Error; err != nil {
		t.Fatalf("seed cv: %v", err)
	}
	return cv
}

// newEngine 返回一个已注入会话的引擎，跳过令牌校验。
func newEngine(session auth.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationIDMiddleware(), func(c *gin.Context) {
		if session.Valid() {
			middleware.SetSession(c, session)
		}
		c.Next()
	})
	return r
}

func do(r http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(r http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	if payload == nil {
		return do(r, method, target, nil, "")
	}
	data, _ := json.Marshal(payload)
	return do(r, method, target, bytes.NewReader(data), "application/json")
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

func newMultipartUpload(t *testing.T, fields map[string]string, fileField string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, "photo.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

type fakePhotos struct {
	objects map[string][]byte
	err     error
	uploads int
}

func newFakePhotos() *fakePhotos {
	return &fakePhotos{objects: map[string][]byte{}}
}

func (p *fakePhotos) Upload(_ context.Context, userID uint, data []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.uploads++
	key := storage.NewPhotoKey(userID)
	p.objects[key] = data
	return key, nil
}

func (p *fakePhotos) Load(_ context.Context, key string) ([]byte, string, error) {
	data, ok := p.objects[key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return data, "image/png", nil
}

type fakeStore struct {
	presigned []string
}

func (s *fakeStore) Put(context.Context, string, []byte, string) error { return nil }
func (s *fakeStore) Get(context.Context, string) ([]byte, string, error) {
	return nil, "", storage.ErrNotFound
}
func (s *fakeStore) Delete(context.Context, string) error { return nil }
func (s *fakeStore) PresignDownload(_ context.Context, key, filename string, _ time.Duration) (string, error) {
	s.presigned = append(s.presigned, key)
	return "https://files.example.invalid/" + key + "?filename=" + filename, nil
}

// counter 模拟 INCR/EXPIRE。
type counter struct {
	counts  map[string]int64
	expired map[string]time.Duration
}

func newCounter() *counter {
	return &counter{counts: map[string]int64{}, expired: map[string]time.Duration{}}
}

func (c *counter) Incr(_ context.Context, key string) *redis.IntCmd {
	c.counts[key]++
	return redis.NewIntResult(c.counts[key], nil)
}

func (c *counter) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	c.expired[key] = ttl
	return redis.NewBoolResult(true, nil)
}

type verifierFunc func(token string) (auth.Session, error)

func (f verifierFunc) Verify(token string) (auth.Session, error) {
	if f == nil {
		return auth.Session{}, auth.ErrInvalidToken
	}
	return f(token)
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// handlerTransport 让 http.Client 直接调用进程内的路由。
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return serve(t.handler, req).Result(), nil
}
