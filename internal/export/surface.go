package export

import (
	"context"
	"errors"
	"image"
)

// Image 是渲染目标内的一张图片。
type Image struct {
	Index       int
	Src         string
	CrossOrigin bool
}

// Host 是已加载渲染结果的浏览器页面。PreviewRoot 指 templates.PreviewRootID 对应的元素。
type Host interface {
	// HasRoot 判断预览根元素是否存在。
	HasRoot(ctx context.Context) (bool, error)
	// Stylesheets 返回每个样式表的全部规则文本；无法读取时返回 ErrStylesheetDenied。
	Stylesheets(ctx context.Context) ([]string, error)
	// OuterHTML 返回预览根元素的标记。
	OuterHTML(ctx context.Context) (string, error)
	Images(ctx context.Context) ([]Image, error)
	// WaitImage 阻塞直到图片加载完成、加载失败或 ctx 结束。
	WaitImage(ctx context.Context, img Image) error
	HideImages(ctx context.Context, imgs []Image) error
	// Rasterize 以给定缩放倍数截取预览根元素。
	Rasterize(ctx context.Context, scale float64) (image.Image, error)
}

// ErrStylesheetDenied 表示某个样式表因跨域规则无法读取。
var ErrStylesheetDenied = errors.New("stylesheet rules not readable")

// PrintSettings 传给隔离页面的打印参数。
type PrintSettings struct {
	PageFormat  PageFormat
	Orientation Orientation
	WidthMM     float64
	HeightMM    float64
}

// Surface 是打印用的隔离渲染页面，由一次 Print-Frame 调用独占。
type Surface interface {
	SetContent(ctx context.Context, html string) error
	// Ready 等待一次性的加载完成信号。
	Ready(ctx context.Context) error
	Print(ctx context.Context, settings PrintSettings) ([]byte, error)
	Close() error
}

// SurfaceFactory 为每次调用创建新的 Surface，从不复用。
type SurfaceFactory interface {
	NewSurface(ctx context.Context) (Surface, error)
}

// SurfaceFactoryFunc 将函数适配为 SurfaceFactory。
type SurfaceFactoryFunc func(ctx context.Context) (Surface, error)

func (f SurfaceFactoryFunc) NewSurface(ctx context.Context) (Surface, error) {
	return f(ctx)
}
