package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cvStudio/internal/export"
)

var (
	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "total",
			Help:      "按策略和失败类型统计的导出次数，成功时 kind 为 ok。",
		},
		[]string{"strategy", "kind"},
	)

	exportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "导出耗时（秒）。",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"strategy"},
	)
)

// ExportObserver 实现 export.Observer。
type ExportObserver struct{}

var _ export.Observer = ExportObserver{}

func (ExportObserver) ObserveExport(strategy string, kind export.ErrorKind, elapsed time.Duration) {
	label := string(kind)
	if label == "" {
		label = "ok"
	}
	exportsTotal.WithLabelValues(strategy, label).Inc()
	exportDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}
