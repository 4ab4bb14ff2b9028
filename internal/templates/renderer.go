package templates

import "cvStudio/internal/resume"

// PreviewRootID 是所有正式模板渲染出的根元素 id，导出引擎据此定位渲染目标。
const PreviewRootID = "cv-preview"

// PlaceholderID 是占位页的根元素 id；占位页中不存在 PreviewRootID。
const PlaceholderID = "cv-placeholder"

// RenderOptions 控制一次渲染。
type RenderOptions struct {
	// PreviewOnly 为 true 时不输出任何内容（当前没有激活的模板）。
	PreviewOnly bool
	// ExportMode 启用导出布局：固定页宽、尽量避免分节跨页。只是提示，分页由导出引擎决定。
	ExportMode bool
	// IncludeColors 为 false 时使用每个颜色对应的灰度替代值。
	IncludeColors bool
	// PhotoURL 是照片的可加载地址（data URI 或预签名链接），为空则不显示照片。
	PhotoURL string
}

// Rendered 是渲染结果：一份完整的 HTML 文档。
type Rendered struct {
	Key         string
	HTML        []byte
	Placeholder bool
}

// Empty 表示 PreviewOnly 渲染出的空结果。
func (r Rendered) Empty() bool { return len(r.HTML) == 0 }

// Renderer 是纯函数式的渲染契约。
type Renderer interface {
	Render(doc resume.Document, opts RenderOptions) (Rendered, error)
}

// RendererFunc 将函数适配为 Renderer。
type RendererFunc func(doc resume.Document, opts RenderOptions) (Rendered, error)

func (f RendererFunc) Render(doc resume.Document, opts RenderOptions) (Rendered, error) {
	return f(doc, opts)
}
