package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/go-pdf/fpdf"
)

// Assembler 把位图和分页方案组装成文档。
type Assembler interface {
	Assemble(bitmap image.Image, plan Plan, opts Options) ([]byte, error)
}

// FPDFAssembler 使用 fpdf 逐页放置同一张位图。
type FPDFAssembler struct {
	Creator string
}

const bitmapName = "cv-bitmap"

func (a FPDFAssembler) Assemble(bitmap image.Image, plan Plan, opts Options) ([]byte, error) {
	if plan.Pages <= 0 {
		return nil, fmt.Errorf("empty pagination plan")
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, bitmap); err != nil {
		return nil, fmt.Errorf("encode bitmap: %w", err)
	}

	orientation := "P"
	if opts.Orientation == Landscape {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", string(opts.PageFormat), "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if a.Creator != "" {
		pdf.SetCreator(a.Creator, true)
	}

	imgOpts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(bitmapName, imgOpts, &encoded)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("register bitmap: %w", err)
	}

	for _, offset := range plan.Offsets {
		pdf.AddPage()
		pdf.ImageOptions(bitmapName, 0, offset, plan.ScaledWidth, plan.ScaledHeight, false, imgOpts, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return out.Bytes(), nil
}
