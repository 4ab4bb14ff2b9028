package errcode

import "cvStudio/internal/export"

// 通知消息中的错误码：
// - 0：成功
// - 4xxx：用户可处理的问题（缺少授权、未选模板、图片加载失败等）
// - 5xxx：系统错误
const (
	OK                  = 0
	ResourceMissing     = 4004
	PaymentRequired     = 4020
	RenderTargetMissing = 4040
	ImageLoadTimeout    = 4080
	RasterizationFailed = 5010
	AssemblyFailed      = 5020
	SystemError         = 5000
)

// ForExport 把导出错误分类映射为通知错误码。
func ForExport(kind export.ErrorKind) int {
	switch kind {
	case "":
		return OK
	case export.KindRenderTargetMissing:
		return RenderTargetMissing
	case export.KindImageLoadTimeout:
		return ImageLoadTimeout
	case export.KindRasterizationFailed:
		return RasterizationFailed
	case export.KindAssemblyFailed:
		return AssemblyFailed
	}
	return SystemError
}
