package export

import (
	"fmt"
	"strings"
)

type PageFormat string

const (
	FormatA4     PageFormat = "A4"
	FormatLetter PageFormat = "Letter"
)

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// pageSizesMM 为纵向尺寸（宽, 高），单位毫米。
var pageSizesMM = map[PageFormat][2]float64{
	FormatA4:     {210, 297},
	FormatLetter: {215.9, 279.4},
}

// CSSPixelsPerMM 对应 96 DPI。
const CSSPixelsPerMM = 96 / 25.4

// Options 是一次导出的参数。
type Options struct {
	PageFormat       PageFormat  `json:"page_format"`
	Orientation      Orientation `json:"orientation"`
	Quality          Quality     `json:"quality"`
	IncludeColors    bool        `json:"include_colors"`
	AllowCrossOrigin bool        `json:"allow_cross_origin"`
	Filename         string      `json:"filename,omitempty"`
}

// DefaultOptions 返回 A4 纵向、标准质量、彩色。
func DefaultOptions() Options {
	return Options{
		PageFormat:    FormatA4,
		Orientation:   Portrait,
		Quality:       QualityStandard,
		IncludeColors: true,
	}
}

// Normalize 将未知或缺失的枚举值替换为默认值，并清理文件名。
func (o Options) Normalize() Options {
	switch {
	case strings.EqualFold(string(o.PageFormat), string(FormatLetter)):
		o.PageFormat = FormatLetter
	default:
		o.PageFormat = FormatA4
	}
	switch Orientation(strings.ToLower(string(o.Orientation))) {
	case Landscape:
		o.Orientation = Landscape
	default:
		o.Orientation = Portrait
	}
	switch Quality(strings.ToLower(string(o.Quality))) {
	case QualityHigh:
		o.Quality = QualityHigh
	default:
		o.Quality = QualityStandard
	}
	o.Filename = normalizeFilename(o.Filename)
	return o
}

// PageSizeMM 返回考虑方向后的页面宽高（毫米）。
func (o Options) PageSizeMM() (width, height float64) {
	size, ok := pageSizesMM[o.PageFormat]
	if !ok {
		size = pageSizesMM[FormatA4]
	}
	if o.Orientation == Landscape {
		return size[1], size[0]
	}
	return size[0], size[1]
}

// PagePixels 返回页面在 CSS 像素下的尺寸。
func (o Options) PagePixels() (width, height int) {
	w, h := o.PageSizeMM()
	return int(w*CSSPixelsPerMM + 0.5), int(h*CSSPixelsPerMM + 0.5)
}

// PageRule 生成隔离页面使用的 @page 规则，并强制打印背景色。
func (o Options) PageRule() string {
	return fmt.Sprintf(`@page { size: %s %s; margin: 0; }
html, body { margin: 0; padding: 0; background: #ffffff; }
* { -webkit-print-color-adjust: exact !important; print-color-adjust: exact !important; }`,
		o.PageFormat, o.Orientation)
}
