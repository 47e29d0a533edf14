package core

import (
	"context"

	"github.com/adamani-ai/rag-backend/internal/models"
)

// VectorIndex stores chunk embeddings partitioned by tenant and answers
// nearest-neighbor queries. Every operation is scoped to one tenant; a search
// must never return a record belonging to another tenant, enforced inside the
// implementation rather than by the caller's query construction.
type VectorIndex interface {
	// Upsert is idempotent per chunk id: re-upserting replaces the prior
	// vector and metadata.
	Upsert(ctx context.Context, tenantID string, records []models.VectorRecord) error

	// Search returns up to k records ordered by descending cosine
	// similarity; ties go to the most recently ingested record.
	Search(ctx context.Context, tenantID string, queryVec []float32, k int) ([]models.SearchResult, error)

	// DeleteDocument removes all records of one document.
	DeleteDocument(ctx context.Context, tenantID, documentID string) error

	// DeleteTenant removes every record for the tenant (knowledge-base clear).
	DeleteTenant(ctx context.Context, tenantID string) error

	Close() error
}
