// Package pipeline 把简历渲染成 HTML，加载到浏览器页面并交给导出引擎。
// API 的同步打印与 worker 的异步导出共用这条流水线。
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"cvStudio/internal/browser"
	"cvStudio/internal/export"
	"cvStudio/internal/resume"
	"cvStudio/internal/templates"
)

// Loader 在浏览器中加载文档，通常是 browser.Driver。
type Loader interface {
	Load(ctx context.Context, html []byte, viewportWidth int) (browser.LoadedHost, error)
}

// PhotoSource 把照片对象键转换为可内联的地址。
type PhotoSource interface {
	DataURI(ctx context.Context, key string) (string, error)
}

// Job 是一次导出的输入快照。
type Job struct {
	CVID          uint
	Document      resume.Document
	PhotoKey      string
	OwnerName     string
	CorrelationID string
	Options       export.Options
}

// Result 附带导出过程中的非致命问题。
type Result struct {
	TemplateKey  string
	PhotoMissing bool
}

type Pipeline struct {
	resolver *templates.Resolver
	photos   PhotoSource
	loader   Loader
	engine   *export.Engine
	logger   *slog.Logger
}

func New(resolver *templates.Resolver, photos PhotoSource, loader Loader, engine *export.Engine, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{resolver: resolver, photos: photos, loader: loader, engine: engine, logger: logger}
}

// Preview 渲染编辑器预览。未选择模板时返回占位内容。
func (p *Pipeline) Preview(ctx context.Context, doc resume.Document, photoKey string, includeColors bool) (templates.Rendered, error) {
	res, err := p.resolver.ForDocument(ctx, doc)
	if err != nil {
		return templates.Rendered{}, fmt.Errorf("resolve template: %w", err)
	}
	photoURL, _ := p.photoURL(ctx, photoKey)
	return res.Renderer.Render(doc, templates.RenderOptions{
		IncludeColors: includeColors,
		PhotoURL:      photoURL,
	})
}

// Print 以 Print-Frame 策略导出当前文档，模板在调用时解析。
func (p *Pipeline) Print(ctx context.Context, job Job) (export.PrintResult, Result, error) {
	res, err := p.resolver.ForDocument(ctx, job.Document)
	if err != nil {
		return export.PrintResult{}, Result{}, fmt.Errorf("resolve template: %w", err)
	}

	var out export.PrintResult
	result, err := p.withHost(ctx, job, res.Key, res.Renderer, func(snap export.Snapshot) error {
		var err error
		out, err = p.engine.PrintFrame(ctx, snap, job.Options)
		return err
	})
	return out, result, err
}

// Raster 以 Raster-Paginate 策略导出。templateKey 是入队时解析好的渲染器键，
// 未注册的键渲染占位内容并以 RenderTargetMissing 失败。
func (p *Pipeline) Raster(ctx context.Context, job Job, templateKey string) (export.Artifact, Result, error) {
	renderer := p.resolver.Registry().ResolveOrPlaceholder(templateKey)

	var out export.Artifact
	result, err := p.withHost(ctx, job, templateKey, renderer, func(snap export.Snapshot) error {
		var err error
		out, err = p.engine.RasterPaginate(ctx, snap, job.Options)
		return err
	})
	return out, result, err
}

func (p *Pipeline) withHost(ctx context.Context, job Job, key string, renderer templates.Renderer, run func(export.Snapshot) error) (Result, error) {
	opts := job.Options.Normalize()
	photoURL, missing := p.photoURL(ctx, job.PhotoKey)
	result := Result{TemplateKey: key, PhotoMissing: missing}

	rendered, err := renderer.Render(job.Document, templates.RenderOptions{
		ExportMode:    true,
		IncludeColors: opts.IncludeColors,
		PhotoURL:      photoURL,
	})
	if err != nil {
		return result, export.NewError(export.KindInternal, "render document", err)
	}

	width, _ := opts.PagePixels()
	host, err := p.loader.Load(ctx, rendered.HTML, width)
	if err != nil {
		return result, export.NewError(export.KindInternal, "load rendered document", err)
	}
	defer func() {
		if err := host.Close(); err != nil {
			p.logger.Warn("close host page failed", slog.Any("error", err))
		}
	}()

	return result, run(export.Snapshot{
		CVID:          job.CVID,
		TemplateID:    job.Document.TemplateID,
		OwnerName:     job.OwnerName,
		CorrelationID: job.CorrelationID,
		Host:          host,
	})
}

// photoURL 读取照片失败时不中断导出，返回 missing=true。
func (p *Pipeline) photoURL(ctx context.Context, key string) (string, bool) {
	if key == "" || p.photos == nil {
		return "", false
	}
	uri, err := p.photos.DataURI(ctx, key)
	if err != nil {
		p.logger.Warn("photo unavailable, rendering without it", slog.String("object_key", key), slog.Any("error", err))
		return "", true
	}
	return uri, false
}
