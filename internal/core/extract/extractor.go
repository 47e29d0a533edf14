package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

// scannedPageThreshold is the minimum number of non-whitespace characters a
// PDF page's text layer must contain before the page is trusted. Below it the
// page is treated as scanned and routed to OCR.
const scannedPageThreshold = 100

// OCREngine extracts text from a single page image.
type OCREngine interface {
	ImageText(ctx context.Context, image []byte) (string, error)
}

// Rasterizer renders each page of a PDF to an image, in page order.
type Rasterizer interface {
	PageImages(ctx context.Context, pdf []byte) ([][]byte, error)
}

var _ core.DocumentExtractor = (*Extractor)(nil)

// Extractor implements core.DocumentExtractor. PDFs go through the docconv
// text layer first; pages that look scanned fall back to rasterize + OCR.
// Image uploads are OCRed directly.
type Extractor struct {
	log        *logger.Logger
	ocr        OCREngine
	rasterizer Rasterizer

	// textLayer is swappable so tests run without the poppler toolchain.
	textLayer func(data []byte) (string, error)
}

func New(log *logger.Logger, ocr OCREngine, rasterizer Rasterizer) *Extractor {
	return &Extractor{
		log:        log.With("service", "Extractor"),
		ocr:        ocr,
		rasterizer: rasterizer,
		textLayer:  docconvTextLayer,
	}
}

// Extract converts raw document bytes into page-annotated text.
func (e *Extractor) Extract(ctx context.Context, data []byte, mediaType string, forceOCR bool) ([]models.PageText, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", core.ErrExtraction)
	}

	var (
		pages []models.PageText
		err   error
	)
	switch {
	case isImage(mediaType):
		pages, err = e.extractImage(ctx, data)
	case isPDF(mediaType):
		if forceOCR {
			pages, err = e.ocrAllPages(ctx, data)
		} else {
			pages, err = e.extractPDF(ctx, data)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported media type %q", core.ErrExtraction, mediaType)
	}
	if err != nil {
		return nil, err
	}

	if !hasText(pages) {
		return nil, fmt.Errorf("%w: %d pages, none with text", core.ErrEmptyDocument, len(pages))
	}
	return pages, nil
}

// extractPDF reads the text layer and re-extracts scanned-looking pages with
// OCR. Pages are rasterized at most once per document.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) ([]models.PageText, error) {
	body, err := e.textLayer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf text layer: %v", core.ErrExtraction, err)
	}

	pages := splitPages(body)

	var sparse []int
	for i := range pages {
		if countInk(pages[i].Text) < scannedPageThreshold {
			sparse = append(sparse, i)
		}
	}
	if len(sparse) == 0 {
		return pages, nil
	}

	images, err := e.rasterizer.PageImages(ctx, data)
	if err != nil {
		if len(sparse) == len(pages) {
			// Nothing dense to fall back on. Ingesting the near-empty
			// text layer would index a scanned document as noise.
			return nil, fmt.Errorf("%w: document looks scanned and rasterization failed: %v", core.ErrExtraction, err)
		}
		e.log.Warn("rasterize failed, keeping sparse text layer", "sparse_pages", len(sparse), "error", err)
		return pages, nil
	}

	for _, i := range sparse {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= len(images) {
			continue
		}
		e.log.Debug("page looks scanned, running OCR", "page", pages[i].Page)
		text, err := e.ocr.ImageText(ctx, images[i])
		if err != nil {
			return nil, fmt.Errorf("%w: ocr page %d: %v", core.ErrExtraction, pages[i].Page, err)
		}
		pages[i].Text = strings.TrimSpace(text)
	}
	return pages, nil
}

// ocrAllPages rasterizes the whole PDF and OCRs every page.
func (e *Extractor) ocrAllPages(ctx context.Context, data []byte) ([]models.PageText, error) {
	images, err := e.rasterizer.PageImages(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: rasterize: %v", core.ErrExtraction, err)
	}
	pages := make([]models.PageText, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := e.ocr.ImageText(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("%w: ocr page %d: %v", core.ErrExtraction, i+1, err)
		}
		pages = append(pages, models.PageText{Page: i + 1, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) ([]models.PageText, error) {
	text, err := e.ocr.ImageText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: image ocr: %v", core.ErrExtraction, err)
	}
	return []models.PageText{{Page: 1, Text: strings.TrimSpace(text)}}, nil
}

func docconvTextLayer(data []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// splitPages splits pdftotext output on form feeds. Output without form feeds
// is treated as a single page.
func splitPages(body string) []models.PageText {
	parts := strings.Split(body, "\f")
	// pdftotext terminates the last page with a form feed too.
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]models.PageText, len(parts))
	for i, p := range parts {
		pages[i] = models.PageText{Page: i + 1, Text: strings.TrimSpace(p)}
	}
	return pages
}

func countInk(s string) int {
	n := 0
	for _, r := range s {
		if !isSpace(r) {
			n++
		}
	}
	return n
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func hasText(pages []models.PageText) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

func isPDF(mediaType string) bool {
	mt := strings.ToLower(mediaType)
	return mt == "application/pdf" || mt == "pdf"
}

func isImage(mediaType string) bool {
	mt := strings.ToLower(mediaType)
	if strings.HasPrefix(mt, "image/") {
		return true
	}
	switch mt {
	case "png", "jpg", "jpeg", "tiff", "bmp":
		return true
	}
	return false
}
