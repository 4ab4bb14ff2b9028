package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestNewKeysAreScopedToUser(t *testing.T) {
	photo := NewPhotoKey(7)
	if !strings.HasPrefix(photo, "user-assets/7/") || !strings.HasSuffix(photo, ".png") {
		t.Fatalf("unexpected photo key %q", photo)
	}
	if !OwnedBy(photo, 7) || OwnedBy(photo, 8) {
		t.Fatalf("ownership check failed for %q", photo)
	}

	export := NewExportKey(7, 3)
	if !strings.HasPrefix(export, "exports/7/3/") || !strings.HasSuffix(export, ".pdf") {
		t.Fatalf("unexpected export key %q", export)
	}
	if NewPhotoKey(7) == photo {
		t.Fatalf("keys must be unique")
	}
}

func TestOwnedByRejectsTraversal(t *testing.T) {
	for _, key := range []string{
		"",
		"user-assets/1/../2/x.png",
		"user-assets/1//x.png",
		`user-assets/1\x.png`,
		"user-assets/10/x.png",
		"other/1/x.png",
		"user-assets/1/" + strings.Repeat("a", 200) + ".png",
	} {
		if OwnedBy(key, 1) {
			t.Errorf("OwnedBy(%q, 1) = true", key)
		}
	}
}

func TestIsNoSuchKey(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNotFound, true},
		{fmt.Errorf("get: %w", minio.ErrorResponse{Code: "NoSuchKey"}), true},
		{minio.ErrorResponse{Code: "AccessDenied"}, false},
		{errors.New("The specified key does not exist."), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsNoSuchKey(tc.err); got != tc.want {
			t.Errorf("IsNoSuchKey(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
