package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/core/chunker"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

type fakeExtractor struct {
	pages []models.PageText
	err   error

	gotForceOCR bool
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, mediaType string, forceOCR bool) ([]models.PageText, error) {
	f.gotForceOCR = forceOCR
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

type fakeEmbedder struct {
	err     error
	batches [][]string
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for n := range texts {
		out[n] = []float32{float32(n), 1}
	}
	return out, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	err     error
	records []models.VectorRecord
	tenants []string
}

func (f *fakeIndex) Upsert(ctx context.Context, tenantID string, records []models.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	f.tenants = append(f.tenants, tenantID)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, tenantID string, queryVec []float32, k int) ([]models.SearchResult, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	return nil
}

func (f *fakeIndex) DeleteTenant(ctx context.Context, tenantID string) error { return nil }
func (f *fakeIndex) Close() error                                            { return nil }

func newPipeline(t *testing.T, ext core.DocumentExtractor, emb core.EmbeddingProvider, idx core.VectorIndex) *Pipeline {
	t.Helper()
	ch, err := chunker.New(100, 20)
	require.NoError(t, err)
	return New(logger.NewNop(), ext, ch, emb, idx, nil)
}

func TestIngestBytes_EndToEnd(t *testing.T) {
	ext := &fakeExtractor{pages: []models.PageText{
		{Page: 1, Text: strings.Repeat("invoice line. ", 20)},
		{Page: 2, Text: "Total: $1,234.56"},
	}}
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	p := newPipeline(t, ext, emb, idx)

	result, err := p.IngestBytes(context.Background(), "tenant-a", []byte("pdf"), "application/pdf", "invoice.pdf", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsAdded)
	assert.Greater(t, result.ChunksCreated, 1)
	assert.Len(t, idx.records, result.ChunksCreated)

	for _, r := range idx.records {
		assert.Equal(t, "tenant-a", r.TenantID)
		assert.Equal(t, "invoice.pdf", r.SourceName)
		assert.NotEmpty(t, r.ChunkID)
		assert.NotEmpty(t, r.Embedding)
		assert.GreaterOrEqual(t, r.Page, 1)
	}
	// Every record belongs to the same new document, reported back to the
	// caller.
	require.NotEmpty(t, result.DocumentID)
	for _, r := range idx.records {
		assert.Equal(t, result.DocumentID, r.DocumentID)
	}
}

func TestParseStorageURL(t *testing.T) {
	bucket, key := ParseStorageURL("https://my-bucket.s3.us-east-2.amazonaws.com/tenant-a/doc-1/file.pdf")
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "tenant-a/doc-1/file.pdf", key)

	bucket, key = ParseStorageURL("https://my-bucket.s3.us-east-2.amazonaws.com")
	assert.Equal(t, "my-bucket", bucket)
	assert.Empty(t, key)

	bucket, key = ParseStorageURL("")
	assert.Empty(t, bucket)
	assert.Empty(t, key)
}

func TestIngestBytes_ExtractionFailureIndexesNothing(t *testing.T) {
	ext := &fakeExtractor{err: fmt.Errorf("%w: corrupt file", core.ErrExtraction)}
	idx := &fakeIndex{}
	p := newPipeline(t, ext, &fakeEmbedder{}, idx)

	_, err := p.IngestBytes(context.Background(), "tenant-a", []byte("x"), "application/pdf", "bad.pdf", false)
	require.ErrorIs(t, err, core.ErrExtraction)
	assert.Empty(t, idx.records)
}

func TestIngestBytes_EmbeddingFailureIndexesNothing(t *testing.T) {
	ext := &fakeExtractor{pages: []models.PageText{{Page: 1, Text: "some text"}}}
	emb := &fakeEmbedder{err: fmt.Errorf("%w: quota", core.ErrEmbeddingService)}
	idx := &fakeIndex{}
	p := newPipeline(t, ext, emb, idx)

	_, err := p.IngestBytes(context.Background(), "tenant-a", []byte("x"), "application/pdf", "doc.pdf", false)
	require.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Empty(t, idx.records)
}

func TestIngestBytes_IndexFailureSurfaces(t *testing.T) {
	ext := &fakeExtractor{pages: []models.PageText{{Page: 1, Text: "some text"}}}
	idx := &fakeIndex{err: fmt.Errorf("%w: connection refused", core.ErrVectorIndex)}
	p := newPipeline(t, ext, &fakeEmbedder{}, idx)

	_, err := p.IngestBytes(context.Background(), "tenant-a", []byte("x"), "application/pdf", "doc.pdf", false)
	require.ErrorIs(t, err, core.ErrVectorIndex)
}

func TestIngestBytes_EmptyDocument(t *testing.T) {
	ext := &fakeExtractor{pages: nil}
	p := newPipeline(t, ext, &fakeEmbedder{}, &fakeIndex{})

	_, err := p.IngestBytes(context.Background(), "tenant-a", []byte("x"), "application/pdf", "empty.pdf", false)
	require.ErrorIs(t, err, core.ErrEmptyDocument)
}

func TestIngestBytes_ForceOCRPassedThrough(t *testing.T) {
	ext := &fakeExtractor{pages: []models.PageText{{Page: 1, Text: "scanned text"}}}
	p := newPipeline(t, ext, &fakeEmbedder{}, &fakeIndex{})

	_, err := p.IngestBytes(context.Background(), "tenant-a", []byte("x"), "application/pdf", "scan.pdf", true)
	require.NoError(t, err)
	assert.True(t, ext.gotForceOCR)
}

func TestIngestBytes_BatchesEmbedding(t *testing.T) {
	// Enough text for well over defaultBatchSize chunks.
	var b strings.Builder
	for n := 0; n < 400; n++ {
		fmt.Fprintf(&b, "paragraph %d with some filler words to fill the budget.\n\n", n)
	}
	ext := &fakeExtractor{pages: []models.PageText{{Page: 1, Text: b.String()}}}
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	p := newPipeline(t, ext, emb, idx)

	result, err := p.IngestBytes(context.Background(), "tenant-a", []byte("x"), "application/pdf", "big.pdf", false)
	require.NoError(t, err)
	require.Greater(t, len(emb.batches), 1, "expected multiple embed batches")
	for n, batch := range emb.batches {
		if n < len(emb.batches)-1 {
			assert.Len(t, batch, defaultBatchSize)
		}
		assert.LessOrEqual(t, len(batch), defaultBatchSize)
	}
	assert.Len(t, idx.records, result.ChunksCreated)
}

func TestIngestTexts(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	p := newPipeline(t, &fakeExtractor{}, emb, idx)

	result, err := p.IngestTexts(context.Background(), "tenant-a", []string{"first note", "second note"}, "notes")
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsAdded)
	assert.Equal(t, 2, result.ChunksCreated)

	names := map[string]bool{}
	docs := map[string]bool{}
	for _, r := range idx.records {
		names[r.SourceName] = true
		docs[r.DocumentID] = true
	}
	assert.True(t, names["notes-1"])
	assert.True(t, names["notes-2"])
	assert.Len(t, docs, 2, "each text gets its own document")
}

func TestIngestTexts_AllEmpty(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{}, &fakeEmbedder{}, &fakeIndex{})

	_, err := p.IngestTexts(context.Background(), "tenant-a", []string{"", ""}, "notes")
	require.ErrorIs(t, err, core.ErrEmptyDocument)
}

type fakeObjectStore struct {
	data map[string][]byte
}

func (f *fakeObjectStore) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeObjectStore) DeleteFile(ctx context.Context, bucket, key string) error { return nil }

func (f *fakeObjectStore) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	d, ok := f.data[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return d, nil
}

func (f *fakeObjectStore) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func TestProcessJob_FetchesFromObjectStorage(t *testing.T) {
	ext := &fakeExtractor{pages: []models.PageText{{Page: 1, Text: "stored doc text"}}}
	idx := &fakeIndex{}
	ch, err := chunker.New(100, 20)
	require.NoError(t, err)
	obj := &fakeObjectStore{data: map[string][]byte{"docs/t-a/report.pdf": []byte("pdf bytes")}}
	p := New(logger.NewNop(), ext, ch, &fakeEmbedder{}, idx, obj)

	err = p.processJob(context.Background(), Job{
		TenantID:   "tenant-a",
		Bucket:     "docs",
		Key:        "t-a/report.pdf",
		SourceName: "report.pdf",
		MediaType:  "application/pdf",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, idx.records)
}

func TestProcessJob_NoObjectStorage(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{}, &fakeEmbedder{}, &fakeIndex{})
	err := p.processJob(context.Background(), Job{Bucket: "docs", Key: "k"})
	require.Error(t, err)
}
