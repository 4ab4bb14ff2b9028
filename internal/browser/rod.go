package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"cvStudio/internal/config"
	"cvStudio/internal/export"
)

// Rod 是基于 go-rod 的驱动，整个进程共享一个浏览器实例，每次调用使用独立页面。
type Rod struct {
	launch  *launcher.Launcher
	browser *rod.Browser
	timeout time.Duration
	logger  *slog.Logger
}

func NewRod(cfg config.BrowserConfig, logger *slog.Logger) (_ *Rod, err error) {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)
	defer func() {
		if err != nil {
			launch.Cleanup()
		}
	}()

	if cfg.BinaryPath != "" {
		launch = launch.Bin(cfg.BinaryPath)
	} else if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	timeout := cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger.Info("browser ready", slog.String("driver", "rod"))
	return &Rod{launch: launch, browser: browser, timeout: timeout, logger: logger}, nil
}

func (r *Rod) Close() error {
	err := r.browser.Close()
	r.launch.Cleanup()
	return err
}

func (r *Rod) newPage(ctx context.Context) (*rod.Page, error) {
	page, err := r.browser.Context(ctx).Timeout(r.timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

// Load 在新页面中加载渲染好的文档并等待字体就绪。
func (r *Rod) Load(ctx context.Context, html []byte, viewportWidth int) (LoadedHost, error) {
	page, err := r.newPage(ctx)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (LoadedHost, error) {
		_ = page.Close()
		return nil, err
	}

	if viewportWidth <= 0 {
		viewportWidth = 794
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            defaultViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fail(fmt.Errorf("set viewport: %w", err))
	}

	p := page.Context(ctx).Timeout(r.timeout)
	if err := p.SetDocumentContent(string(html)); err != nil {
		return fail(fmt.Errorf("set document content: %w", err))
	}
	if err := p.WaitLoad(); err != nil {
		return fail(fmt.Errorf("wait load: %w", err))
	}
	if _, err := p.Timeout(5 * time.Second).Eval(jsFontsReady); err != nil {
		r.logger.Warn("document.fonts.ready wait failed, continue", slog.Any("error", err))
	}
	return &rodHost{page: page}, nil
}

// NewSurface 为一次打印创建新的页面目标。
func (r *Rod) NewSurface(ctx context.Context) (export.Surface, error) {
	page, err := r.newPage(ctx)
	if err != nil {
		return nil, err
	}
	return &rodSurface{page: page, timeout: r.timeout}, nil
}

type rodHost struct {
	page *rod.Page
}

func (h *rodHost) evalString(ctx context.Context, js string, args ...interface{}) (string, error) {
	res, err := h.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (h *rodHost) HasRoot(ctx context.Context) (bool, error) {
	res, err := h.page.Context(ctx).Eval(jsHasRoot)
	if err != nil {
		return false, fmt.Errorf("query preview root: %w", err)
	}
	return res.Value.Bool(), nil
}

func (h *rodHost) Stylesheets(ctx context.Context) ([]string, error) {
	raw, err := h.evalString(ctx, jsStylesheets)
	if err != nil {
		return nil, fmt.Errorf("read stylesheets: %w", err)
	}
	return decodeStylesheets(raw)
}

func (h *rodHost) OuterHTML(ctx context.Context) (string, error) {
	html, err := h.evalString(ctx, jsOuterHTML)
	if err != nil {
		return "", fmt.Errorf("serialize preview root: %w", err)
	}
	return html, nil
}

func (h *rodHost) Images(ctx context.Context) ([]export.Image, error) {
	raw, err := h.evalString(ctx, jsImages)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return decodeImages(raw)
}

func (h *rodHost) WaitImage(ctx context.Context, img export.Image) error {
	if _, err := h.page.Context(ctx).Eval(jsWaitImage, img.Index); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (h *rodHost) HideImages(ctx context.Context, imgs []export.Image) error {
	indexes := make([]int, 0, len(imgs))
	for _, img := range imgs {
		indexes = append(indexes, img.Index)
	}
	if _, err := h.page.Context(ctx).Eval(jsHideImages, indexes); err != nil {
		return fmt.Errorf("hide images: %w", err)
	}
	return nil
}

func (h *rodHost) Rasterize(ctx context.Context, scale float64) (image.Image, error) {
	raw, err := h.evalString(ctx, jsRootBox)
	if err != nil {
		return nil, fmt.Errorf("measure preview root: %w", err)
	}
	clip, err := decodeBox(raw)
	if err != nil {
		return nil, err
	}
	if clip.Width <= 0 || clip.Height <= 0 {
		return image.NewRGBA(image.Rectangle{}), nil
	}

	data, err := h.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      clip.X,
			Y:      clip.Y,
			Width:  clip.Width,
			Height: clip.Height,
			Scale:  scale,
		},
		CaptureBeyondViewport: true,
	})
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func (h *rodHost) Close() error {
	return h.page.Close()
}

type rodSurface struct {
	page    *rod.Page
	timeout time.Duration
}

func (s *rodSurface) SetContent(ctx context.Context, html string) error {
	if err := s.page.Context(ctx).Timeout(s.timeout).SetDocumentContent(html); err != nil {
		return fmt.Errorf("set surface content: %w", err)
	}
	return nil
}

func (s *rodSurface) Ready(ctx context.Context) error {
	if err := s.page.Context(ctx).Timeout(s.timeout).WaitLoad(); err != nil {
		return fmt.Errorf("wait surface load: %w", err)
	}
	return nil
}

func (s *rodSurface) Print(ctx context.Context, settings export.PrintSettings) ([]byte, error) {
	reader, err := s.page.Context(ctx).Timeout(s.timeout).PDF(&proto.PagePrintToPDF{
		Landscape:         settings.Orientation == export.Landscape,
		PrintBackground:   true,
		PaperWidth:        float64Ptr(mmToInches(settings.WidthMM)),
		PaperHeight:       float64Ptr(mmToInches(settings.HeightMM)),
		MarginTop:         float64Ptr(0),
		MarginBottom:      float64Ptr(0),
		MarginLeft:        float64Ptr(0),
		MarginRight:       float64Ptr(0),
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}

func (s *rodSurface) Close() error {
	return s.page.Close()
}

func decodeStylesheets(raw string) ([]string, error) {
	var res stylesheetResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode stylesheets: %w", err)
	}
	if res.Denied {
		return nil, fmt.Errorf("%w: %s", export.ErrStylesheetDenied, res.Href)
	}
	return res.Sheets, nil
}

func decodeImages(raw string) ([]export.Image, error) {
	var res imagesResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	out := make([]export.Image, 0, len(res.Images))
	for _, img := range res.Images {
		out = append(out, export.Image{
			Index:       img.Index,
			Src:         img.Src,
			CrossOrigin: isForeign(img.Src, res.Origin),
		})
	}
	return out, nil
}

func decodeBox(raw string) (box, error) {
	var b *box
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return box{}, fmt.Errorf("decode root box: %w", err)
	}
	if b == nil {
		return box{}, nil
	}
	return *b, nil
}

func float64Ptr(value float64) *float64 {
	return &value
}
