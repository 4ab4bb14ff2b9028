package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"cvStudio/internal/config"
	"cvStudio/internal/export"
)

// Chromedp 是基于 chromedp 的驱动，共享一个 Chromium 进程，每个页面一个 tab。
type Chromedp struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	logger        *slog.Logger
}

func NewChromedp(cfg config.BrowserConfig, logger *slog.Logger) (*Chromedp, error) {
	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.BinaryPath != "" {
		options = append(options, chromedp.ExecPath(cfg.BinaryPath))
	}
	options = append(options,
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), options...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// 首次 Run 启动浏览器进程。
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chromium: %w", err)
	}

	timeout := cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger.Info("browser ready", slog.String("driver", "chromedp"))
	return &Chromedp{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

func (c *Chromedp) Close() error {
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *Chromedp) newTab() tab {
	ctx, cancel := chromedp.NewContext(c.browserCtx)
	return tab{ctx: ctx, cancel: cancel}
}

// run 在 tab 上执行动作，同时响应调用方 ctx 的取消。
func (t tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	execCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-execCtx.Done():
		}
	}()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, timeout)
		defer cancelTimeout()
	}
	err := chromedp.Run(execCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func setDocumentContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

func (c *Chromedp) Load(ctx context.Context, html []byte, viewportWidth int) (LoadedHost, error) {
	if viewportWidth <= 0 {
		viewportWidth = 794
	}
	t := c.newTab()
	err := t.run(ctx, c.timeout,
		emulation.SetDeviceMetricsOverride(int64(viewportWidth), defaultViewportHeight, 1, false),
		chromedp.Navigate("about:blank"),
		setDocumentContent(string(html)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		t.cancel()
		return nil, fmt.Errorf("load document: %w", err)
	}
	host := &chromedpHost{tab: t}
	var ready bool
	if err := host.eval(ctx, jsFontsReady, nil, &ready); err != nil {
		c.logger.Warn("document.fonts.ready wait failed, continue", slog.Any("error", err))
	}
	return host, nil
}

func (c *Chromedp) NewSurface(ctx context.Context) (export.Surface, error) {
	t := c.newTab()
	if err := t.run(ctx, c.timeout, chromedp.Navigate("about:blank")); err != nil {
		t.cancel()
		return nil, fmt.Errorf("open print surface: %w", err)
	}
	return &chromedpSurface{tab: t, timeout: c.timeout}, nil
}

type chromedpHost struct {
	tab tab
}

// eval 调用脚本中的函数表达式；arg 为 nil 时不传参。
func (h *chromedpHost) eval(ctx context.Context, fn string, arg any, out any) error {
	expr := "(" + fn + ")()"
	if arg != nil {
		encoded, err := json.Marshal(arg)
		if err != nil {
			return err
		}
		expr = "(" + fn + ")(" + string(encoded) + ")"
	}
	return h.tab.run(ctx, 0, chromedp.Evaluate(expr, out, awaitPromise))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (h *chromedpHost) document(ctx context.Context) (*goquery.Document, error) {
	var markup string
	if err := h.tab.run(ctx, 0, chromedp.Evaluate(`document.documentElement.outerHTML`, &markup)); err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

func (h *chromedpHost) HasRoot(ctx context.Context) (bool, error) {
	var ok bool
	if err := h.eval(ctx, jsHasRoot, nil, &ok); err != nil {
		return false, fmt.Errorf("query preview root: %w", err)
	}
	return ok, nil
}

func (h *chromedpHost) Stylesheets(ctx context.Context) ([]string, error) {
	var raw string
	if err := h.eval(ctx, jsStylesheets, nil, &raw); err != nil {
		return nil, fmt.Errorf("read stylesheets: %w", err)
	}
	return decodeStylesheets(raw)
}

func (h *chromedpHost) OuterHTML(ctx context.Context) (string, error) {
	doc, err := h.document(ctx)
	if err != nil {
		return "", fmt.Errorf("serialize preview root: %w", err)
	}
	root := doc.Find(rootSelector).First()
	if root.Length() == 0 {
		return "", nil
	}
	return goquery.OuterHtml(root)
}

func (h *chromedpHost) Images(ctx context.Context) ([]export.Image, error) {
	var origin string
	if err := h.tab.run(ctx, 0, chromedp.Evaluate(`location.origin`, &origin)); err != nil {
		return nil, fmt.Errorf("read page origin: %w", err)
	}
	doc, err := h.document(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var images []export.Image
	doc.Find(rootSelector + " img").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		images = append(images, export.Image{
			Index:       i,
			Src:         src,
			CrossOrigin: isForeign(src, origin),
		})
	})
	return images, nil
}

func (h *chromedpHost) WaitImage(ctx context.Context, img export.Image) error {
	var ok bool
	return h.eval(ctx, jsWaitImage, img.Index, &ok)
}

func (h *chromedpHost) HideImages(ctx context.Context, imgs []export.Image) error {
	indexes := make([]int, 0, len(imgs))
	for _, img := range imgs {
		indexes = append(indexes, img.Index)
	}
	var ok bool
	if err := h.eval(ctx, jsHideImages, indexes, &ok); err != nil {
		return fmt.Errorf("hide images: %w", err)
	}
	return nil
}

func (h *chromedpHost) Rasterize(ctx context.Context, scale float64) (image.Image, error) {
	var raw string
	if err := h.eval(ctx, jsRootBox, nil, &raw); err != nil {
		return nil, fmt.Errorf("measure preview root: %w", err)
	}
	clip, err := decodeBox(raw)
	if err != nil {
		return nil, err
	}
	if clip.Width <= 0 || clip.Height <= 0 {
		return image.NewRGBA(image.Rectangle{}), nil
	}

	var data []byte
	err = h.tab.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{X: clip.X, Y: clip.Y, Width: clip.Width, Height: clip.Height, Scale: scale}).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func (h *chromedpHost) Close() error {
	h.tab.cancel()
	return nil
}

type chromedpSurface struct {
	tab     tab
	timeout time.Duration
}

func (s *chromedpSurface) SetContent(ctx context.Context, html string) error {
	if err := s.tab.run(ctx, s.timeout, setDocumentContent(html)); err != nil {
		return fmt.Errorf("set surface content: %w", err)
	}
	return nil
}

func (s *chromedpSurface) Ready(ctx context.Context) error {
	if err := s.tab.run(ctx, s.timeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait surface load: %w", err)
	}
	return nil
}

func (s *chromedpSurface) Print(ctx context.Context, settings export.PrintSettings) ([]byte, error) {
	var pdf []byte
	err := s.tab.run(ctx, s.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdf, _, err = page.PrintToPDF().
			WithLandscape(settings.Orientation == export.Landscape).
			WithPrintBackground(true).
			WithPreferCSSPageSize(true).
			WithPaperWidth(mmToInches(settings.WidthMM)).
			WithPaperHeight(mmToInches(settings.HeightMM)).
			WithMarginTop(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithMarginRight(0).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, errors.New("print to pdf: empty output")
	}
	return pdf, nil
}

func (s *chromedpSurface) Close() error {
	s.tab.cancel()
	return nil
}
