package models

import (
	"time"
)

// Document represents one uploaded source file owned by a tenant.
type Document struct {
	ID         string    `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	SourceName string    `db:"source_name" json:"source_name"`
	ByteSize   int64     `db:"byte_size" json:"byte_size"`
	MediaType  string    `db:"media_type" json:"media_type"` // e.g. application/pdf, image/png
	StorageURL string    `db:"storage_url" json:"storage_url,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PageText is one page of extracted text, in page order.
type PageText struct {
	Page int    `json:"page"` // 1-based
	Text string `json:"text"`
}

// Chunk is one bounded passage of a document's extracted text.
type Chunk struct {
	ID            string    `db:"id" json:"id"`
	DocumentID    string    `db:"document_id" json:"document_id"`
	TenantID      string    `db:"tenant_id" json:"tenant_id"`
	SequenceIndex int       `db:"sequence_index" json:"sequence_index"`
	Text          string    `db:"text" json:"text"`
	PageStart     int       `db:"page_start" json:"page_start"`
	PageEnd       int       `db:"page_end" json:"page_end"`
	CharStart     int       `db:"char_start" json:"char_start"`
	CharEnd       int       `db:"char_end" json:"char_end"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// VectorRecord is the indexed form of a chunk: its embedding plus the
// metadata returned to callers at retrieval time.
type VectorRecord struct {
	ChunkID    string    `db:"id" json:"chunk_id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	SourceName string    `db:"source_name" json:"source_name"`
	Page       int       `db:"page" json:"page"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SearchResult pairs an indexed record with its similarity to the query.
type SearchResult struct {
	Record VectorRecord `json:"record"`
	Score  float64      `json:"score"`
}

// RetrievedChunk is the retrieval engine's view of a search hit, shaped for
// prompt assembly and the sources event.
type RetrievedChunk struct {
	Content  string        `json:"content"`
	Score    float64       `json:"score"`
	Metadata SourceDetails `json:"metadata"`
}

// SourceDetails identifies where a retrieved chunk came from.
type SourceDetails struct {
	Source     string `json:"source"`
	Page       int    `json:"page"`
	DocumentID string `json:"document_id,omitempty"`
}

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Stream event types emitted by the generation orchestrator, in order:
// one sources event, zero or more token events, then done or error.
const (
	EventSources = "sources"
	EventToken   = "token"
	EventDone    = "done"
	EventError   = "error"
)

// StreamEvent is one element of a query-stream response.
type StreamEvent struct {
	Type      string           `json:"type"`
	Sources   []RetrievedChunk `json:"sources,omitempty"`
	Token     string           `json:"token,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Err       string           `json:"error,omitempty"`
}

// IngestResult reports what one ingestion call produced. DocumentID is set
// for single-document calls and stays off the wire; handlers that need it
// surface it through Document.
type IngestResult struct {
	DocumentsAdded int    `json:"documents_added"`
	ChunksCreated  int    `json:"chunks_created"`
	DocumentID     string `json:"-"`
}
