package storage

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	photoPrefix  = "user-assets"
	exportPrefix = "exports"
)

// NewPhotoKey 生成 user-assets/<uid>/<uuid>.png。
func NewPhotoKey(userID uint) string {
	return fmt.Sprintf("%s/%d/%s.png", photoPrefix, userID, uuid.NewString())
}

// NewExportKey 生成 exports/<uid>/<cvID>/<uuid>.pdf。
func NewExportKey(userID, cvID uint) string {
	return fmt.Sprintf("%s/%d/%d/%s.pdf", exportPrefix, userID, cvID, uuid.NewString())
}

// OwnedBy 校验对象键属于该用户，拒绝路径穿越。
func OwnedBy(key string, userID uint) bool {
	if key == "" || len(key) > 200 || !utf8.ValidString(key) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	for _, prefix := range []string{photoPrefix, exportPrefix} {
		if strings.HasPrefix(key, fmt.Sprintf("%s/%d/", prefix, userID)) {
			return true
		}
	}
	return false
}
