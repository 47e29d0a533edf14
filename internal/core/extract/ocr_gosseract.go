package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

var _ OCREngine = (*GosseractEngine)(nil)

// GosseractEngine runs Tesseract OCR via gosseract. A fresh client per call
// keeps the engine safe for concurrent ingestion workers; Tesseract handles
// are not thread safe.
type GosseractEngine struct {
	languages []string
}

// NewGosseractEngine takes an OCR language spec like "eng" or "eng+deu".
func NewGosseractEngine(languages string) *GosseractEngine {
	var langs []string
	for _, l := range strings.Split(languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &GosseractEngine{languages: langs}
}

func (g *GosseractEngine) ImageText(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(g.languages) > 0 {
		if err := client.SetLanguage(g.languages...); err != nil {
			return "", fmt.Errorf("set ocr language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
