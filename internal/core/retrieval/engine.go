package retrieval

import (
	"context"
	"fmt"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

// Engine answers "which chunks matter for this question" by embedding the
// query and searching the tenant's partition of the vector index.
type Engine struct {
	log      *logger.Logger
	embedder core.EmbeddingProvider
	index    core.VectorIndex

	defaultK int
	maxK     int
}

func NewEngine(log *logger.Logger, embedder core.EmbeddingProvider, index core.VectorIndex, defaultK, maxK int) *Engine {
	if defaultK <= 0 {
		defaultK = 4
	}
	if maxK < defaultK {
		maxK = defaultK
	}
	return &Engine{
		log:      log.With("service", "Retrieval"),
		embedder: embedder,
		index:    index,
		defaultK: defaultK,
		maxK:     maxK,
	}
}

// Retrieve returns the top-k chunks for the query. k <= 0 selects the
// configured default; k above the ceiling is clamped, not rejected, to bound
// cost. An empty index yields an empty slice, not an error.
func (e *Engine) Retrieve(ctx context.Context, tenantID, query string, k int) ([]models.RetrievedChunk, error) {
	if k <= 0 {
		k = e.defaultK
	}
	if k > e.maxK {
		e.log.Debug("clamping retrieval k", "requested", k, "ceiling", e.maxK)
		k = e.maxK
	}

	vecs, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", core.ErrEmbeddingService, len(vecs))
	}

	results, err := e.index.Search(ctx, tenantID, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, models.RetrievedChunk{
			Content: r.Record.Text,
			Score:   r.Score,
			Metadata: models.SourceDetails{
				Source:     r.Record.SourceName,
				Page:       r.Record.Page,
				DocumentID: r.Record.DocumentID,
			},
		})
	}
	return chunks, nil
}
