// Package browser 提供导出引擎使用的无头浏览器驱动（go-rod 与 chromedp）。
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"cvStudio/internal/config"
	"cvStudio/internal/export"
)

// LoadedHost 是加载了渲染结果的页面，调用方负责 Close。
type LoadedHost interface {
	export.Host
	Close() error
}

// Driver 创建承载渲染结果的页面和打印用的隔离页面。
type Driver interface {
	export.SurfaceFactory
	// Load 在新页面中加载 HTML 文档，viewportWidth 为 CSS 像素。
	Load(ctx context.Context, html []byte, viewportWidth int) (LoadedHost, error)
	Close() error
}

// New 根据配置选择驱动。
func New(cfg config.BrowserConfig, logger *slog.Logger) (Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "rod":
		return NewRod(cfg, logger)
	case "chromedp":
		return NewChromedp(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported browser driver %q", cfg.Driver)
	}
}

// defaultViewportHeight 是 A4 纵向在 96 DPI 下的高度。
const defaultViewportHeight = 1123

// isForeign 判断图片地址是否跨域。内联文档没有来源，data: 与 blob: 之外的地址都视为跨域。
func isForeign(src, pageOrigin string) bool {
	src = strings.TrimSpace(src)
	lower := strings.ToLower(src)
	if src == "" || strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return false
	}
	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" {
		return false
	}
	if pageOrigin == "" || pageOrigin == "null" {
		return true
	}
	return !strings.EqualFold(u.Scheme+"://"+u.Host, pageOrigin)
}

func mmToInches(mm float64) float64 { return mm / 25.4 }
