package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
)

var _ core.VectorIndex = (*MemoryIndex)(nil)

// MemoryIndex is an in-process vector index using brute-force cosine
// similarity. Tenants get separate partitions, so isolation is structural: a
// search can only ever see the partition it was handed.
type MemoryIndex struct {
	mu         sync.RWMutex
	partitions map[string]*partition

	// now is swappable for deterministic tie-break tests.
	now func() time.Time
}

type partition struct {
	records map[string]models.VectorRecord // by chunk id
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		partitions: make(map[string]*partition),
		now:        time.Now,
	}
}

func (m *MemoryIndex) Close() error { return nil }

func (m *MemoryIndex) Upsert(ctx context.Context, tenantID string, records []models.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.partitions[tenantID]
	if !ok {
		p = &partition{records: make(map[string]models.VectorRecord)}
		m.partitions[tenantID] = p
	}
	for _, r := range records {
		r.TenantID = tenantID
		if r.CreatedAt.IsZero() {
			r.CreatedAt = m.now()
		}
		p.records[r.ChunkID] = r
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, tenantID string, queryVec []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.partitions[tenantID]
	if !ok {
		return nil, nil
	}

	results := make([]models.SearchResult, 0, len(p.records))
	for _, r := range p.records {
		results = append(results, models.SearchResult{Record: r, Score: cosine(queryVec, r.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (m *MemoryIndex) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.partitions[tenantID]
	if !ok {
		return nil
	}
	for id, r := range p.records {
		if r.DocumentID == documentID {
			delete(p.records, id)
		}
	}
	return nil
}

func (m *MemoryIndex) DeleteTenant(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.partitions, tenantID)
	return nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
