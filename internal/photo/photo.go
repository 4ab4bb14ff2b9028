// Package photo 处理简历头像：校验尺寸、裁剪缩放为正方形 PNG、病毒扫描并写入对象存储。
package photo

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"cvStudio/internal/storage"
)

// Side 是存储照片的边长（像素）。
const Side = 1280

// MaxUploadBytes 限制上传原图的大小。
const MaxUploadBytes = 10 << 20

var (
	ErrTooSmall    = errors.New("photo must be at least 1280x1280 pixels")
	ErrUnsupported = errors.New("unsupported image format")
	ErrTooLarge    = errors.New("photo exceeds upload size limit")
	ErrInfected    = errors.New("malicious file detected")
)

// Normalize 解码图片，居中裁剪为正方形并缩放到 Side×Side，输出 PNG。
func Normalize(data []byte) ([]byte, error) {
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width < Side || cfg.Height < Side {
		return nil, fmt.Errorf("%w: got %dx%d", ErrTooSmall, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, Side, Side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, centerSquare(src.Bounds()), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}

func centerSquare(b image.Rectangle) image.Rectangle {
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}

// Service 组合扫描、规范化与存储。
type Service struct {
	store   storage.ObjectStore
	scanner Scanner
	logger  *slog.Logger
}

// NewService 创建照片服务；scanner 为 nil 时跳过扫描。
func NewService(store storage.ObjectStore, scanner Scanner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if scanner == nil {
		scanner = noopScanner{}
	}
	return &Service{store: store, scanner: scanner, logger: logger}
}

// Upload 扫描原始数据、规范化后写入 user-assets/<uid>/<uuid>.png，返回对象键。
func (s *Service) Upload(ctx context.Context, userID uint, data []byte) (string, error) {
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}
	if err := s.scanner.Scan(ctx, data); err != nil {
		return "", err
	}
	normalized, err := Normalize(data)
	if err != nil {
		return "", err
	}

	key := storage.NewPhotoKey(userID)
	if err := s.store.Put(ctx, key, normalized, "image/png"); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	s.logger.Info("photo stored", slog.Uint64("user_id", uint64(userID)), slog.String("object_key", key))
	return key, nil
}

// Load 读取已存储的照片。调用方需先用 storage.OwnedBy 校验归属。
func (s *Service) Load(ctx context.Context, key string) ([]byte, string, error) {
	data, contentType, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// DataURI 把照片内联为 data URI，渲染结果因此不依赖跨域资源。
// key 为空时返回空串。
func (s *Service) DataURI(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	data, contentType, err := s.Load(ctx, key)
	if err != nil {
		return "", err
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
