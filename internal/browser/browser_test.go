package browser

import (
	"errors"
	"math"
	"testing"

	"cvStudio/internal/config"
	"cvStudio/internal/export"
)

func TestIsForeign(t *testing.T) {
	cases := []struct {
		src    string
		origin string
		want   bool
	}{
		{"data:image/png;base64,AAAA", "null", false},
		{"blob:null/123", "null", false},
		{"", "null", false},
		{"photo.png", "null", false},
		{"https://cdn.example.com/a.png", "null", true},
		{"https://cdn.example.com/a.png", "", true},
		{"https://app.example.com/a.png", "https://app.example.com", false},
		{"HTTPS://App.Example.com/a.png", "https://app.example.com", false},
		{"https://cdn.example.com/a.png", "https://app.example.com", true},
	}
	for _, tc := range cases {
		if got := isForeign(tc.src, tc.origin); got != tc.want {
			t.Errorf("isForeign(%q, %q) = %v, want %v", tc.src, tc.origin, got, tc.want)
		}
	}
}

func TestDecodeImagesMarksCrossOrigin(t *testing.T) {
	raw := `{"origin":"null","images":[{"index":0,"src":"data:image/png;base64,AA"},{"index":1,"src":"https://cdn.example.com/x.png"}]}`
	images, err := decodeImages(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if images[0].CrossOrigin || !images[1].CrossOrigin {
		t.Fatalf("unexpected cross-origin flags: %+v", images)
	}
	if images[1].Index != 1 {
		t.Fatalf("index not kept: %+v", images[1])
	}
}

func TestDecodeStylesheetsDenied(t *testing.T) {
	_, err := decodeStylesheets(`{"denied":true,"href":"https://fonts.example.com/x.css"}`)
	if !errors.Is(err, export.ErrStylesheetDenied) {
		t.Fatalf("expected ErrStylesheetDenied, got %v", err)
	}

	sheets, err := decodeStylesheets(`{"denied":false,"sheets":["body { margin: 0px; }"]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sheets) != 1 {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
}

func TestDecodeBox(t *testing.T) {
	b, err := decodeBox(`null`)
	if err != nil || b.Width != 0 {
		t.Fatalf("null box: %+v %v", b, err)
	}
	b, err = decodeBox(`{"x":0,"y":8,"width":794,"height":2400}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Width != 794 || b.Height != 2400 || b.Y != 8 {
		t.Fatalf("unexpected box: %+v", b)
	}
	if _, err := decodeBox(`{`); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMMToInches(t *testing.T) {
	if got := mmToInches(210); math.Abs(got-8.2677) > 0.001 {
		t.Fatalf("A4 width = %v", got)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(config.BrowserConfig{Driver: "webkit"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
