// Package export 把已渲染的简历预览导出为可打印的文档。
package export

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cvStudio/internal/resume"
)

const (
	StrategyPrintFrame     = "print_frame"
	StrategyRasterPaginate = "raster_paginate"
)

// Snapshot 在导出开始时固定下来，之后不再读取文档或模板选择。
type Snapshot struct {
	CVID          uint
	TemplateID    resume.TemplateID
	OwnerName     string
	CorrelationID string
	Host          Host
}

// Observer 接收每次导出的结果，用于指标统计。
type Observer interface {
	ObserveExport(strategy string, kind ErrorKind, elapsed time.Duration)
}

// Config 是导出引擎的参数。零值字段使用默认值。
type Config struct {
	ImageTimeout  time.Duration
	PrintGrace    time.Duration
	StandardScale float64
	HighScale     float64

	Assembler Assembler
	Observer  Observer
	Now       func() time.Time
	// AfterFunc 用于安排隔离页面的延迟释放，测试中可替换。
	AfterFunc func(d time.Duration, f func())
}

const (
	DefaultImageTimeout  = 10 * time.Second
	DefaultPrintGrace    = 60 * time.Second
	DefaultStandardScale = 2
	DefaultHighScale     = 3
)

func (c Config) withDefaults() Config {
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = DefaultImageTimeout
	}
	if c.PrintGrace <= 0 {
		c.PrintGrace = DefaultPrintGrace
	}
	if c.StandardScale <= 0 {
		c.StandardScale = DefaultStandardScale
	}
	if c.HighScale <= 0 || c.HighScale < c.StandardScale {
		c.HighScale = c.StandardScale + 1
	}
	if c.Assembler == nil {
		c.Assembler = FPDFAssembler{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.AfterFunc == nil {
		c.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return c
}

// Engine 执行两种导出策略。可被并发使用，每次调用之间不共享状态。
type Engine struct {
	factory SurfaceFactory
	cfg     Config
	logger  *slog.Logger
}

func NewEngine(factory SurfaceFactory, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{factory: factory, cfg: cfg.withDefaults(), logger: logger}
}

// Scale 返回质量对应的光栅化倍数。
func (e *Engine) Scale(q Quality) float64 {
	if q == QualityHigh {
		return e.cfg.HighScale
	}
	return e.cfg.StandardScale
}

func (e *Engine) log(snap Snapshot, strategy string) *slog.Logger {
	return e.logger.With(
		slog.Uint64("cv_id", uint64(snap.CVID)),
		slog.String("template_id", string(snap.TemplateID)),
		slog.String("strategy", strategy),
		slog.String("correlation_id", snap.CorrelationID),
	)
}

func (e *Engine) observe(strategy string, err error, started time.Time) {
	if e.cfg.Observer == nil {
		return
	}
	e.cfg.Observer.ObserveExport(strategy, KindFromError(err), e.cfg.Now().Sub(started))
}

// lease 保证隔离页面只被释放一次。
type lease struct {
	once    sync.Once
	surface Surface
	logger  *slog.Logger
}

func (l *lease) release() {
	l.once.Do(func() {
		if err := l.surface.Close(); err != nil {
			l.logger.Warn("release print surface failed", slog.Any("error", err))
			return
		}
		l.logger.Debug("print surface released")
	})
}

// hasRoot 是两种策略共同的第一步。
func hasRoot(ctx context.Context, host Host) error {
	if host == nil {
		return NewError(KindRenderTargetMissing, "no rendered host", nil)
	}
	ok, err := host.HasRoot(ctx)
	if err != nil {
		return NewError(KindRenderTargetMissing, "locate preview root", err)
	}
	if !ok {
		return NewError(KindRenderTargetMissing, "preview root not found", nil)
	}
	return nil
}
