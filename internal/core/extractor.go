package core

import (
	"context"

	"github.com/adamani-ai/rag-backend/internal/models"
)

// DocumentExtractor turns raw document bytes into page-annotated plain text.
// The mediaType hint selects the parsing strategy; forceOCR skips the text
// layer entirely and rasterizes every page for OCR.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte, mediaType string, forceOCR bool) ([]models.PageText, error)
}
