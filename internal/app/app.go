package app

import (
	"context"
	"fmt"
	"time"

	"github.com/adamani-ai/rag-backend/internal/config"
	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/core/chunker"
	"github.com/adamani-ai/rag-backend/internal/core/extract"
	"github.com/adamani-ai/rag-backend/internal/core/ingest"
	"github.com/adamani-ai/rag-backend/internal/core/llm"
	"github.com/adamani-ai/rag-backend/internal/core/memory"
	"github.com/adamani-ai/rag-backend/internal/core/objectstore"
	"github.com/adamani-ai/rag-backend/internal/core/orchestrator"
	"github.com/adamani-ai/rag-backend/internal/core/retrieval"
	"github.com/adamani-ai/rag-backend/internal/core/vectorindex"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

// ingestWorkers drains the background re-processing queue.
const ingestWorkers = 2

// App owns every long-lived component and their shutdown order.
type App struct {
	Log      *logger.Logger
	Index    core.VectorIndex
	Memory   core.ConversationMemory
	Pipeline *ingest.Pipeline
	Server   *Server
}

// NewApp builds the whole component graph from configuration. Backends are
// selected here: pgvector or in-memory for vectors, redis or in-memory for
// conversation history.
func NewApp(ctx context.Context, log *logger.Logger, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	index, err := newVectorIndex(appCtx, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	log.Info("vector index ready", "backend", cfg.VectorBackend)

	conversations, err := newConversationMemory(appCtx, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("conversation memory: %w", err)
	}
	log.Info("conversation memory ready", "backend", cfg.MemoryBackend)

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	generator, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	var objClient core.ObjectClient
	if cfg.AwsAccessKey != "" {
		objClient, err = objectstore.NewS3Client(appCtx, log, cfg)
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
	} else {
		log.Warn("object storage not configured, originals will not be archived")
	}

	extractor := extract.New(log, extract.NewGosseractEngine(cfg.OCRLanguages), extract.NewPopplerRasterizer())

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	pipeline := ingest.New(log, extractor, ch, embedder, index, objClient)
	pipeline.Start(ctx, ingestWorkers)

	engine := retrieval.NewEngine(log, embedder, index, cfg.RetrievalTopK, cfg.RetrievalMaxK)
	orch := orchestrator.New(log, engine, conversations, generator)

	server := NewServer(log, cfg, pipeline, index, conversations, orch, objClient)

	return &App{
		Log:      log,
		Index:    index,
		Memory:   conversations,
		Pipeline: pipeline,
		Server:   server,
	}, nil
}

func newVectorIndex(ctx context.Context, log *logger.Logger, cfg *config.Config) (core.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "pgvector":
		return vectorindex.NewPgVectorIndex(ctx, log, cfg.DatabaseURL, cfg.EmbedDim)
	case "memory":
		return vectorindex.NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("%w: unknown VECTOR_BACKEND %q", core.ErrInvalidConfiguration, cfg.VectorBackend)
	}
}

func newConversationMemory(ctx context.Context, log *logger.Logger, cfg *config.Config) (core.ConversationMemory, error) {
	switch cfg.MemoryBackend {
	case "redis":
		return memory.NewRedisStore(ctx, log, cfg.RedisAddr, cfg.MemoryMaxMessages)
	case "memory":
		return memory.NewStore(cfg.MemoryMaxMessages), nil
	default:
		return nil, fmt.Errorf("%w: unknown MEMORY_BACKEND %q", core.ErrInvalidConfiguration, cfg.MemoryBackend)
	}
}

// Close releases backend connections.
func (a *App) Close() {
	if a.Index != nil {
		_ = a.Index.Close()
	}
	if closer, ok := a.Memory.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	a.Log.Sync()
}
