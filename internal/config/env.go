package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/adamani-ai/rag-backend/internal/core"
)

type Config struct {
	Port    string
	LogMode string

	// Vector index
	VectorBackend string // "pgvector" or "memory"
	DatabaseURL   string
	SslCertPath   string

	// Object storage for original uploads
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	// Models
	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string

	// Ingestion
	ChunkSize    int // characters per chunk
	ChunkOverlap int // characters shared between consecutive chunks
	OCRLanguages string

	// Retrieval
	RetrievalTopK int // default k
	RetrievalMaxK int // ceiling; larger requests are clamped

	// Conversation memory
	MemoryBackend     string // "memory" or "redis"
	MemoryMaxMessages int
	RedisAddr         string

	JWTSecret string
}

// LoadConfig reads the environment (with optional .env) and validates the
// chunking and retrieval knobs. Misconfiguration fails here, at startup,
// never per request.
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		LogMode: getEnv("LOG_MODE", "dev"),

		VectorBackend: getEnv("VECTOR_BACKEND", "pgvector"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SslCertPath:   getEnv("SSL_CERT_PATH", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "adamani-docs"),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:   getEnvInt("EMBED_DIM", 768),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-flash"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		OCRLanguages: getEnv("OCR_LANGUAGES", "eng"),

		RetrievalTopK: getEnvInt("RETRIEVAL_TOP_K", 4),
		RetrievalMaxK: getEnvInt("RETRIEVAL_MAX_K", 20),

		MemoryBackend:     getEnv("MEMORY_BACKEND", "memory"),
		MemoryMaxMessages: getEnvInt("MEMORY_MAX_MESSAGES", 20),
		RedisAddr:         getEnv("REDIS_ADDR", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the startup invariants.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive, got %d", core.ErrInvalidConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: CHUNK_OVERLAP must not be negative, got %d", core.ErrInvalidConfiguration, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			core.ErrInvalidConfiguration, c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("%w: RETRIEVAL_TOP_K must be positive, got %d", core.ErrInvalidConfiguration, c.RetrievalTopK)
	}
	if c.RetrievalMaxK < c.RetrievalTopK {
		return fmt.Errorf("%w: RETRIEVAL_MAX_K (%d) must be >= RETRIEVAL_TOP_K (%d)",
			core.ErrInvalidConfiguration, c.RetrievalMaxK, c.RetrievalTopK)
	}
	if c.MemoryMaxMessages <= 0 {
		return fmt.Errorf("%w: MEMORY_MAX_MESSAGES must be positive, got %d", core.ErrInvalidConfiguration, c.MemoryMaxMessages)
	}
	switch c.VectorBackend {
	case "pgvector":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL not set for pgvector backend", core.ErrInvalidConfiguration)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown VECTOR_BACKEND %q", core.ErrInvalidConfiguration, c.VectorBackend)
	}
	switch c.MemoryBackend {
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: REDIS_ADDR not set for redis memory backend", core.ErrInvalidConfiguration)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown MEMORY_BACKEND %q", core.ErrInvalidConfiguration, c.MemoryBackend)
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
