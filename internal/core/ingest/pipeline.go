package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/core/chunker"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

// defaultBatchSize is how many chunks are embedded and written per batch.
const defaultBatchSize = 32

// Job is a request to re-process a document from object storage, queued for
// the background workers.
type Job struct {
	TenantID   string
	Bucket     string
	Key        string
	SourceName string
	MediaType  string
	ForceOCR   bool
}

// Pipeline runs documents through extract, chunk, embed and index stages.
// The stages after extraction are tied together with an errgroup so a failure
// anywhere cancels the rest and nothing partial completes the call.
type Pipeline struct {
	log       *logger.Logger
	extractor core.DocumentExtractor
	chunker   *chunker.Chunker
	embedder  core.EmbeddingProvider
	index     core.VectorIndex
	obj       core.ObjectClient
	batchSize int
	jobs      chan Job
	now       func() time.Time
}

// New constructs the pipeline with a bounded job queue (64). obj may be nil
// when no object storage is configured; Enqueue is then not usable.
func New(log *logger.Logger, extractor core.DocumentExtractor, ch *chunker.Chunker, embedder core.EmbeddingProvider, index core.VectorIndex, obj core.ObjectClient) *Pipeline {
	return &Pipeline{
		log:       log,
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		index:     index,
		obj:       obj,
		batchSize: defaultBatchSize,
		jobs:      make(chan Job, 64),
		now:       time.Now,
	}
}

// IngestBytes runs one document through the full pipeline synchronously.
// On any stage failure nothing is left in the index for the new document.
func (p *Pipeline) IngestBytes(ctx context.Context, tenantID string, data []byte, mediaType, sourceName string, forceOCR bool) (models.IngestResult, error) {
	pages, err := p.extractor.Extract(ctx, data, mediaType, forceOCR)
	if err != nil {
		return models.IngestResult{}, err
	}

	docID := uuid.NewString()
	chunks := p.chunker.Chunk(docID, tenantID, pages)
	if len(chunks) == 0 {
		return models.IngestResult{}, fmt.Errorf("%w: %s produced no chunks", core.ErrEmptyDocument, sourceName)
	}

	if err := p.embedAndIndex(ctx, tenantID, sourceName, chunks); err != nil {
		return models.IngestResult{}, err
	}

	p.log.Info("document ingested",
		"tenant_id", tenantID,
		"document_id", docID,
		"source", sourceName,
		"chunks", len(chunks),
	)
	return models.IngestResult{DocumentsAdded: 1, ChunksCreated: len(chunks), DocumentID: docID}, nil
}

// IngestTexts indexes raw text snippets. Each text becomes its own single-page
// document named after the batch source.
func (p *Pipeline) IngestTexts(ctx context.Context, tenantID string, texts []string, sourceName string) (models.IngestResult, error) {
	if sourceName == "" {
		sourceName = "text"
	}

	result := models.IngestResult{}
	for n, text := range texts {
		pages := []models.PageText{{Page: 1, Text: text}}
		docID := uuid.NewString()
		chunks := p.chunker.Chunk(docID, tenantID, pages)
		if len(chunks) == 0 {
			continue
		}
		name := sourceName
		if len(texts) > 1 {
			name = fmt.Sprintf("%s-%d", sourceName, n+1)
		}
		if err := p.embedAndIndex(ctx, tenantID, name, chunks); err != nil {
			return models.IngestResult{}, err
		}
		result.DocumentsAdded++
		result.ChunksCreated += len(chunks)
	}
	if result.DocumentsAdded == 0 {
		return models.IngestResult{}, core.ErrEmptyDocument
	}
	return result, nil
}

// embedAndIndex streams chunks through an embed+upsert stage in batches.
func (p *Pipeline) embedAndIndex(ctx context.Context, tenantID, sourceName string, chunks []models.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)

	chunkCh := p.streamChunks(gctx, g, chunks)

	g.Go(func() error {
		return p.embedBatches(gctx, tenantID, sourceName, chunkCh)
	})

	return g.Wait()
}

// streamChunks feeds prepared chunks downstream, assigning IDs and timestamps.
func (p *Pipeline) streamChunks(ctx context.Context, g *errgroup.Group, chunks []models.Chunk) <-chan models.Chunk {
	out := make(chan models.Chunk, 8)

	g.Go(func() error {
		defer close(out)
		now := p.now()
		for _, c := range chunks {
			c.ID = uuid.NewString()
			c.CreatedAt = now
			select {
			case out <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return out
}

// embedBatches consumes chunks, embeds them batchSize at a time and writes the
// vectors to the index.
func (p *Pipeline) embedBatches(ctx context.Context, tenantID, sourceName string, chunks <-chan models.Chunk) error {
	batch := make([]models.Chunk, 0, p.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for n, c := range batch {
			texts[n] = c.Text
		}
		vectors, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		records := make([]models.VectorRecord, len(batch))
		for n, c := range batch {
			records[n] = models.VectorRecord{
				ChunkID:    c.ID,
				TenantID:   tenantID,
				DocumentID: c.DocumentID,
				SourceName: sourceName,
				Page:       c.PageStart,
				Text:       c.Text,
				Embedding:  vectors[n],
				CreatedAt:  c.CreatedAt,
			}
		}
		if err := p.index.Upsert(ctx, tenantID, records); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for c := range chunks {
		batch = append(batch, c)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Start runs numWorkers goroutines draining the job queue until ctx is done.
func (p *Pipeline) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					p.log.Info("ingest worker shutting down", "worker", w)
					return
				case job := <-p.jobs:
					p.log.Info("processing queued document",
						"worker", w,
						"tenant_id", job.TenantID,
						"source", job.SourceName,
					)
					if err := p.processJob(ctx, job); err != nil {
						p.log.Error("queued ingestion failed",
							"tenant_id", job.TenantID,
							"source", job.SourceName,
							"error", err,
						)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a stored document for re-processing. Blocks when the
// queue is full.
func (p *Pipeline) Enqueue(job Job) {
	p.jobs <- job
}

// ParseStorageURL extracts the bucket and key from a virtual-hosted-style S3
// URL such as https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf.
func ParseStorageURL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	if dot := strings.Index(host, "."); dot > 0 {
		bucket = host[:dot]
	}
	return bucket, key
}

// processJob fetches the stored bytes and runs them through the pipeline
// under its own timeout, detached from the caller's request context.
func (p *Pipeline) processJob(ctx context.Context, job Job) error {
	if p.obj == nil {
		return fmt.Errorf("object storage not configured")
	}

	proctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	data, err := p.obj.GetFile(proctx, job.Bucket, job.Key)
	if err != nil {
		return fmt.Errorf("get object: %w", err)
	}

	_, err = p.IngestBytes(proctx, job.TenantID, data, job.MediaType, job.SourceName, job.ForceOCR)
	return err
}
