package export

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// PrintResult 是 Print-Frame 的输出：交给客户端打印对话框的文档，不会被存储。
type PrintResult struct {
	Filename string
	PDF      []byte
}

// PrintFrame 把预览根元素和全部样式复制到隔离页面并打印。
// 隔离页面在函数返回后由计时器延迟释放，任何退出路径都只释放一次。
func (e *Engine) PrintFrame(ctx context.Context, snap Snapshot, opts Options) (result PrintResult, err error) {
	opts = opts.Normalize()
	started := e.cfg.Now()
	logger := e.log(snap, StrategyPrintFrame)
	defer func() {
		if err != nil {
			err = asPrintError(err)
			logger.Warn("print export failed", slog.String("kind", string(KindFromError(err))), slog.Any("error", err))
		}
		e.observe(StrategyPrintFrame, err, started)
	}()

	// 1. 定位渲染目标
	if err := hasRoot(ctx, snap.Host); err != nil {
		return PrintResult{}, err
	}

	// 2. 创建隔离页面
	if e.factory == nil {
		return PrintResult{}, NewError(KindPrintFailed, "print surface unavailable", nil)
	}
	surface, err := e.factory.NewSurface(ctx)
	if err != nil {
		return PrintResult{}, NewError(KindPrintFailed, "create print surface", err)
	}
	l := &lease{surface: surface, logger: logger}
	defer e.cfg.AfterFunc(e.cfg.PrintGrace, l.release)

	// 3. 收集样式表
	sheets, err := snap.Host.Stylesheets(ctx)
	if err != nil {
		return PrintResult{}, NewError(KindPrintFailed, "read stylesheets", err)
	}

	// 4. 复制预览标记
	markup, err := snap.Host.OuterHTML(ctx)
	if err != nil {
		return PrintResult{}, NewError(KindPrintFailed, "serialize preview root", err)
	}
	if strings.TrimSpace(markup) == "" {
		return PrintResult{}, NewError(KindRenderTargetMissing, "preview root is empty", nil)
	}

	if err := surface.SetContent(ctx, PrintDocument(sheets, markup, opts)); err != nil {
		return PrintResult{}, NewError(KindPrintFailed, "load print surface", err)
	}

	// 5. 等待隔离页面就绪
	if err := surface.Ready(ctx); err != nil {
		return PrintResult{}, NewError(KindPrintFailed, "wait for print surface", err)
	}

	// 6. 打印
	w, h := opts.PageSizeMM()
	pdf, err := surface.Print(ctx, PrintSettings{
		PageFormat:  opts.PageFormat,
		Orientation: opts.Orientation,
		WidthMM:     w,
		HeightMM:    h,
	})
	if err != nil {
		return PrintResult{}, NewError(KindPrintFailed, "print surface", err)
	}

	filename := opts.Filename
	if filename == "" {
		filename = DefaultFilename(snap.OwnerName, e.cfg.Now())
	}
	logger.Info("print export ready", slog.Int("bytes", len(pdf)))
	return PrintResult{Filename: filename, PDF: pdf}, nil
}

// asPrintError 让打印路径上的所有失败都带有“未选择模板”的提示。
func asPrintError(err error) error {
	var exportErr *Error
	if !errors.As(err, &exportErr) {
		exportErr = NewError(KindPrintFailed, "print export", err)
	}
	if exportErr.User == "" {
		exportErr.User = MsgNoTemplateSelected
	}
	return exportErr
}

// PrintDocument 组装隔离页面的完整文档：所有样式规则合并为一个 style 块，后接 @page 规则。
func PrintDocument(sheets []string, markup string, opts Options) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n<style>\n")
	for _, sheet := range sheets {
		b.WriteString(escapeStyle(sheet))
		b.WriteByte('\n')
	}
	b.WriteString(opts.PageRule())
	b.WriteString("\n</style>\n</head>\n<body class=\"export\">\n")
	b.WriteString(markup)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// escapeStyle 防止规则文本提前闭合 style 元素。
func escapeStyle(css string) string {
	const closing = "</style"
	var b strings.Builder
	for i := 0; i < len(css); {
		if i+len(closing) <= len(css) && strings.EqualFold(css[i:i+len(closing)], closing) {
			b.WriteString(`<\/`)
			i += 2
			continue
		}
		b.WriteByte(css[i])
		i++
	}
	return b.String()
}
