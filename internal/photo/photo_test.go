package photo

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"cvStudio/internal/storage"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(data)
	m.types[key] = contentType
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return bytes.Clone(data), m.types[key], nil
}

func (m *memoryStore) PresignDownload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + key, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type scannerFunc func([]byte) error

func (f scannerFunc) Scan(_ context.Context, data []byte) error { return f(data) }

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// 左右两侧涂红，居中裁剪后应当看不到
			if x < (w-h)/2 || x >= w-(w-h)/2 {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeCropsAndResizes(t *testing.T) {
	out, err := Normalize(encodePNG(t, 1600, 1300))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if img.Bounds().Dx() != Side || img.Bounds().Dy() != Side {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	for _, x := range []int{0, Side / 2, Side - 1} {
		r, _, b, _ := img.At(x, Side/2).RGBA()
		if r > 0x1000 || b < 0xf000 {
			t.Fatalf("pixel %d not from centre square: r=%x b=%x", x, r, b)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	if _, err := Normalize(encodePNG(t, 1280, 1000)); !errors.Is(err, ErrTooSmall) {
		t.Fatalf("expected ErrTooSmall, got %v", err)
	}
	if _, err := Normalize([]byte("not an image")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if _, err := Normalize(make([]byte, MaxUploadBytes+1)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestUploadStoresUnderUserPrefix(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)

	key, err := svc.Upload(context.Background(), 42, encodePNG(t, 1280, 1280))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(key, "user-assets/42/") || !storage.OwnedBy(key, 42) {
		t.Fatalf("unexpected key %q", key)
	}
	if store.types[key] != "image/png" {
		t.Fatalf("content type = %q", store.types[key])
	}

	uri, err := svc.DataURI(context.Background(), key)
	if err != nil {
		t.Fatalf("data uri: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected data uri prefix: %.40s", uri)
	}
	if uri, err := svc.DataURI(context.Background(), ""); err != nil || uri != "" {
		t.Fatalf("empty key should give empty uri, got %q %v", uri, err)
	}
}

func TestUploadStopsOnScanFailure(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, scannerFunc(func([]byte) error { return ErrInfected }), nil)

	if _, err := svc.Upload(context.Background(), 1, encodePNG(t, 1280, 1280)); !errors.Is(err, ErrInfected) {
		t.Fatalf("expected ErrInfected, got %v", err)
	}
	if len(store.objects) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestNewClamdScannerDisabledWithoutAddress(t *testing.T) {
	if NewClamdScanner("") != nil {
		t.Fatalf("expected nil scanner")
	}
}
