package export

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Artifact 是 Raster-Paginate 生成的可下载文档。
type Artifact struct {
	Filename string
	Pages    int
	PDF      []byte
}

// RasterPaginate 把预览根元素光栅化为一张位图，再按页高平铺到多页 PDF。
func (e *Engine) RasterPaginate(ctx context.Context, snap Snapshot, opts Options) (artifact Artifact, err error) {
	opts = opts.Normalize()
	started := e.cfg.Now()
	logger := e.log(snap, StrategyRasterPaginate)
	defer func() {
		if err != nil {
			logger.Warn("raster export failed", slog.String("kind", string(KindFromError(err))), slog.Any("error", err))
		}
		e.observe(StrategyRasterPaginate, err, started)
	}()

	// 1. 定位渲染目标
	if err := hasRoot(ctx, snap.Host); err != nil {
		return Artifact{}, err
	}

	// 2. 等待全部图片，每张图片独立超时
	if err := e.waitImages(ctx, snap.Host, opts); err != nil {
		return Artifact{}, err
	}

	// 3. 光栅化并铺白底
	scale := e.Scale(opts.Quality)
	raw, err := snap.Host.Rasterize(ctx, scale)
	if err != nil {
		if ctx.Err() != nil {
			return Artifact{}, ctx.Err()
		}
		return Artifact{}, NewError(KindRasterizationFailed, "rasterize preview root", err)
	}

	// 4. 空位图视为生成失败
	if raw == nil || raw.Bounds().Dx() <= 0 || raw.Bounds().Dy() <= 0 {
		return Artifact{}, NewError(KindRasterizationFailed, "rasterized bitmap has zero size", nil)
	}
	bitmap := FlattenOnWhite(raw)

	// 5–6. 计算分页
	pageW, pageH := opts.PageSizeMM()
	b := bitmap.Bounds()
	plan := Paginate(float64(b.Dx()), float64(b.Dy()), pageW, pageH)

	// 7. 组装
	pdf, err := e.cfg.Assembler.Assemble(bitmap, plan, opts)
	if err != nil {
		return Artifact{}, NewError(KindAssemblyFailed, "assemble pdf", err)
	}

	filename := opts.Filename
	if filename == "" {
		filename = DefaultFilename(snap.OwnerName, e.cfg.Now())
	}
	logger.Info("raster export ready",
		slog.Int("pages", plan.Pages),
		slog.Float64("scale", scale),
		slog.Int("bitmap_width", b.Dx()),
		slog.Int("bitmap_height", b.Dy()),
	)
	return Artifact{Filename: filename, Pages: plan.Pages, PDF: pdf}, nil
}

// waitImages 先隐藏不允许的跨域图片，再并行等待其余图片。
// 任一图片超时或加载失败都会中止整个导出。
func (e *Engine) waitImages(ctx context.Context, host Host, opts Options) error {
	images, err := host.Images(ctx)
	if err != nil {
		return NewError(KindImageLoadTimeout, "list images", err)
	}

	pending := make([]Image, 0, len(images))
	var foreign []Image
	for _, img := range images {
		if img.CrossOrigin && !opts.AllowCrossOrigin {
			foreign = append(foreign, img)
			continue
		}
		pending = append(pending, img)
	}
	if len(foreign) > 0 {
		if err := host.HideImages(ctx, foreign); err != nil {
			return NewError(KindRasterizationFailed, "hide cross-origin images", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, img := range pending {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(gctx, e.cfg.ImageTimeout)
			defer cancel()
			if err := host.WaitImage(ictx, img); err != nil {
				return NewError(KindImageLoadTimeout,
					fmt.Sprintf("image %d (%s) not loaded within %s", img.Index, img.Src, e.cfg.ImageTimeout), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// FlattenOnWhite 把位图合成到不透明白底上，避免透明区域打印为黑色。
func FlattenOnWhite(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
