package export

import "math"

// Plan 描述位图在页面上的平铺方式。单位与页面尺寸一致。
type Plan struct {
	ScaledWidth  float64
	ScaledHeight float64
	PageHeight   float64
	Pages        int
	// Offsets[k] 是第 k 页上整张位图的纵向偏移，等于 -k*PageHeight。
	Offsets []float64
}

// Paginate 让位图宽度等于页宽并按比例缩放高度。放得下则单页；否则每一页
// 都绘制整张位图，偏移逐页上移一个页高，由页面边界裁掉其余部分。
// 页数恰为 ceil(ScaledHeight / PageHeight)。
func Paginate(imageWidth, imageHeight, pageWidth, pageHeight float64) Plan {
	if imageWidth <= 0 || imageHeight <= 0 || pageWidth <= 0 || pageHeight <= 0 {
		return Plan{}
	}
	plan := Plan{
		ScaledWidth:  pageWidth,
		ScaledHeight: imageHeight * pageWidth / imageWidth,
		PageHeight:   pageHeight,
	}

	plan.Pages = max(1, int(math.Ceil(plan.ScaledHeight/pageHeight)))
	plan.Offsets = make([]float64, plan.Pages)
	for k := range plan.Offsets {
		plan.Offsets[k] = -float64(k) * pageHeight
	}
	return plan
}
