package errcode

import (
	"testing"

	"cvStudio/internal/export"
)

func TestForExport(t *testing.T) {
	cases := map[export.ErrorKind]int{
		"":                             OK,
		export.KindRenderTargetMissing: RenderTargetMissing,
		export.KindImageLoadTimeout:    ImageLoadTimeout,
		export.KindRasterizationFailed: RasterizationFailed,
		export.KindAssemblyFailed:      AssemblyFailed,
		export.KindPrintFailed:         SystemError,
		export.KindInternal:            SystemError,
	}
	for kind, want := range cases {
		if got := ForExport(kind); got != want {
			t.Errorf("ForExport(%q) = %d, want %d", kind, got, want)
		}
	}
}
