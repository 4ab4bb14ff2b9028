package templates

import (
	"fmt"
	"sort"
	"strings"

	"cvStudio/internal/resume"
)

// builtins 是固定的模板集合，启动时一次性注册。
var builtins = []struct {
	key     string
	label   string
	palette Palette
}{
	{key: "classic", label: "Classic", palette: classicPalette},
	{key: "modern", label: "Modern", palette: modernPalette},
	{key: "compact", label: "Compact", palette: compactPalette},
}

// Registry 将模板键映射到渲染器。构建完成后只读，可被并发使用。
type Registry struct {
	renderers   map[string]Renderer
	placeholder Renderer
}

// NewRegistry 解析内嵌模板并注册固定集合。解析失败说明构建产物损坏。
func NewRegistry() (*Registry, error) {
	reg := &Registry{renderers: make(map[string]Renderer, len(builtins))}
	for _, b := range builtins {
		r, err := newHTMLRenderer(b.key, b.palette)
		if err != nil {
			return nil, err
		}
		reg.renderers[b.key] = r
	}
	ph, err := newPlaceholderRenderer()
	if err != nil {
		return nil, err
	}
	reg.placeholder = ph
	return reg, nil
}

// MustRegistry wraps NewRegistry and panics on failure.
func MustRegistry() *Registry {
	reg, err := NewRegistry()
	if err != nil {
		panic(fmt.Errorf("templates: %w", err))
	}
	return reg
}

// Resolve 查找模板键对应的渲染器；未注册的键返回 false。
func (r *Registry) Resolve(key string) (Renderer, bool) {
	if r == nil {
		return nil, false
	}
	renderer, ok := r.renderers[strings.TrimSpace(key)]
	return renderer, ok
}

// ResolveOrPlaceholder 在未找到时返回占位渲染器。
func (r *Registry) ResolveOrPlaceholder(key string) Renderer {
	if renderer, ok := r.Resolve(key); ok {
		return renderer
	}
	return r.Placeholder()
}

// Keys 返回已注册的模板键（有序）。
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.renderers))
	for k := range r.renderers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Placeholder 返回占位渲染器，其输出中不含 PreviewRootID。
func (r *Registry) Placeholder() Renderer {
	if r == nil || r.placeholder == nil {
		return RendererFunc(func(resume.Document, RenderOptions) (Rendered, error) {
			return Rendered{Placeholder: true}, nil
		})
	}
	return r.placeholder
}
