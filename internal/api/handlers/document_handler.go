package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/adamani-ai/rag-backend/internal/api/middlewares"
	"github.com/adamani-ai/rag-backend/internal/config"
	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/core/ingest"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

// maxUploadBytes caps multipart uploads at 50 MB.
const maxUploadBytes = 50 << 20

type DocumentHandler struct {
	log      *logger.Logger
	pipeline *ingest.Pipeline
	index    core.VectorIndex
	obj      core.ObjectClient
	cfg      *config.Config
}

// NewDocumentHandler wires the ingestion endpoints. obj may be nil when no
// object storage is configured; originals are then not archived.
func NewDocumentHandler(log *logger.Logger, pipeline *ingest.Pipeline, index core.VectorIndex, obj core.ObjectClient, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{log: log, pipeline: pipeline, index: index, obj: obj, cfg: cfg}
}

// UploadResponse pairs the stored document's metadata with the ingestion
// counts.
type UploadResponse struct {
	Document       models.Document `json:"document"`
	DocumentsAdded int             `json:"documents_added"`
	ChunksCreated  int             `json:"chunks_created"`
}

// UploadDocument accepts a multipart upload, archives the original when
// object storage is configured, and runs ingestion synchronously so the
// response reports what was indexed.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		http.Error(w, "could not read file", http.StatusBadRequest)
		return
	}
	if len(data) > maxUploadBytes {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	forceOCR := r.FormValue("force_ocr") == "true"

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	cleanFilename := filepath.Base(header.Filename)

	// Archive the original first so the document can be re-processed later
	// via its storage URL.
	var storageURL string
	if h.obj != nil {
		s3Key := fmt.Sprintf("%s/%s/%s", tenantID, uuid.NewString(), cleanFilename)
		storageURL, err = h.obj.UploadFile(r.Context(), h.cfg.BucketName, s3Key, data, contentType)
		if err != nil {
			h.log.Warn("original upload not archived",
				"tenant_id", tenantID,
				"source", cleanFilename,
				"error", err,
			)
			storageURL = ""
		}
	}

	result, err := h.pipeline.IngestBytes(r.Context(), tenantID, data, contentType, cleanFilename, forceOCR)
	if err != nil {
		h.writeIngestError(w, tenantID, cleanFilename, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadResponse{
		Document: models.Document{
			ID:         result.DocumentID,
			TenantID:   tenantID,
			SourceName: cleanFilename,
			ByteSize:   int64(len(data)),
			MediaType:  contentType,
			StorageURL: storageURL,
			CreatedAt:  time.Now(),
		},
		DocumentsAdded: result.DocumentsAdded,
		ChunksCreated:  result.ChunksCreated,
	})
}

type ReprocessRequest struct {
	StorageURL string `json:"storage_url"`
	SourceName string `json:"source_name"`
	MediaType  string `json:"media_type"`
	ForceOCR   bool   `json:"force_ocr"`
}

// ReprocessDocument queues a previously archived upload for background
// re-ingestion, reading the original bytes back from object storage. Useful
// after an OCR or embedding outage, or to re-index with force_ocr.
func (h *DocumentHandler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if h.obj == nil {
		http.Error(w, "object storage not configured", http.StatusServiceUnavailable)
		return
	}

	var req ReprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	bucket, key := ingest.ParseStorageURL(req.StorageURL)
	if key == "" {
		http.Error(w, "storage_url required", http.StatusBadRequest)
		return
	}
	if bucket == "" {
		bucket = h.cfg.BucketName
	}
	sourceName := req.SourceName
	if sourceName == "" {
		sourceName = filepath.Base(key)
	}
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "application/pdf"
	}

	h.pipeline.Enqueue(ingest.Job{
		TenantID:   tenantID,
		Bucket:     bucket,
		Key:        key,
		SourceName: sourceName,
		MediaType:  mediaType,
		ForceOCR:   req.ForceOCR,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued", "source_name": sourceName})
}

type AddTextsRequest struct {
	Texts      []string `json:"texts"`
	SourceName string   `json:"source_name"`
}

// AddTexts indexes raw text snippets without a file upload.
func (h *DocumentHandler) AddTexts(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req AddTextsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Texts) == 0 {
		http.Error(w, "texts must not be empty", http.StatusBadRequest)
		return
	}

	result, err := h.pipeline.IngestTexts(r.Context(), tenantID, req.Texts, req.SourceName)
	if err != nil {
		h.writeIngestError(w, tenantID, req.SourceName, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// DeleteDocument removes every indexed chunk of one document.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	documentID := chi.URLParam(r, "document_id")
	if documentID == "" {
		http.Error(w, "document_id required", http.StatusBadRequest)
		return
	}

	if err := h.index.DeleteDocument(r.Context(), tenantID, documentID); err != nil {
		h.log.Error("delete document failed", "tenant_id", tenantID, "document_id", documentID, "error", err)
		http.Error(w, "could not delete document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "document_id": documentID})
}

// ClearKnowledgeBase removes every indexed chunk for the tenant.
func (h *DocumentHandler) ClearKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.index.DeleteTenant(r.Context(), tenantID); err != nil {
		h.log.Error("clear knowledge base failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "could not clear knowledge base", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}

func (h *DocumentHandler) writeIngestError(w http.ResponseWriter, tenantID, source string, err error) {
	h.log.Error("ingestion failed", "tenant_id", tenantID, "source", source, "error", err)

	switch {
	case errors.Is(err, core.ErrEmptyDocument):
		http.Error(w, "document contains no extractable text", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrExtraction):
		http.Error(w, "document could not be processed", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrEmbeddingService):
		http.Error(w, "embedding service unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
	}
}
