package core

import "errors"

// Error taxonomy shared across the ingestion and query paths. Components wrap
// these with fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	// ErrExtraction means the source bytes could not be read or converted.
	ErrExtraction = errors.New("document extraction failed")

	// ErrEmptyDocument means extraction succeeded but produced no text at all.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrInvalidConfiguration is raised at startup, never per request.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmbeddingService means the embedding backend is unavailable or
	// returned an unusable response. Both ingestion and retrieval fail closed.
	ErrEmbeddingService = errors.New("embedding service unavailable")

	// ErrVectorIndex means the vector storage backend is unavailable.
	ErrVectorIndex = errors.New("vector index unavailable")

	// ErrGenerationStream means the generation service failed mid-stream.
	ErrGenerationStream = errors.New("generation stream failed")

	// ErrGenerationTimeout means the generation service exceeded its deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrTenantIsolation signals an internal invariant breach: storage
	// returned data belonging to a different tenant. Never corrected
	// silently; surfaced and logged as fatal for the operation.
	ErrTenantIsolation = errors.New("tenant isolation violation")
)
