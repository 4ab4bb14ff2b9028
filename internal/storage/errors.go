package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ErrNotFound 由非 MinIO 实现（如测试用内存存储）在对象不存在时返回。
var ErrNotFound = errors.New("object not found")

// IsNoSuchKey 判断错误是否表示对象不存在。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch strings.ToLower(strings.TrimSpace(resp.Code)) {
		case "nosuchkey", "notfound":
			return true
		}
	}

	// 网关可能只保留错误文本
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "nosuchkey") ||
		strings.Contains(lower, "specified key does not exist")
}
