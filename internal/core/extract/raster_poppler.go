package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

var _ Rasterizer = (*PopplerRasterizer)(nil)

// PopplerRasterizer renders PDF pages with pdftoppm, the same poppler
// toolchain docconv shells out to for text extraction.
type PopplerRasterizer struct {
	// DPI for rendered pages; OCR accuracy drops sharply below ~150.
	DPI int
}

func NewPopplerRasterizer() *PopplerRasterizer {
	return &PopplerRasterizer{DPI: 200}
}

func (p *PopplerRasterizer) PageImages(ctx context.Context, pdf []byte) ([][]byte, error) {
	dir, err := os.MkdirTemp("", "rag-raster-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(src, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	dpi := p.DPI
	if dpi <= 0 {
		dpi = 200
	}
	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", fmt.Sprint(dpi), src, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, out)
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(matches)

	images := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read page image: %w", err)
		}
		images = append(images, b)
	}
	return images, nil
}
