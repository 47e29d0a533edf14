package vectorindex

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

var _ core.VectorIndex = (*PgVectorIndex)(nil)

// PgVectorIndex stores chunk embeddings in Postgres with pgvector. Every
// statement carries the tenant_id predicate, and search results are re-checked
// row by row so a storage or query bug surfaces as ErrTenantIsolation instead
// of leaking across tenants.
type PgVectorIndex struct {
	db  *sql.DB
	log *logger.Logger
	dim int
}

func NewPgVectorIndex(ctx context.Context, log *logger.Logger, databaseURL string, embedDim int) (*PgVectorIndex, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is empty", core.ErrInvalidConfiguration)
	}
	if embedDim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", core.ErrInvalidConfiguration, embedDim)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", core.ErrVectorIndex, err)
	}

	idx := &PgVectorIndex{db: db, log: log.With("service", "PgVectorIndex"), dim: embedDim}
	if err := idx.ensureBootstrapped(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return idx, nil
}

func (x *PgVectorIndex) Close() error {
	if x.db != nil {
		return x.db.Close()
	}
	return nil
}

func (x *PgVectorIndex) ensureBootstrapped(ctx context.Context) error {
	bootCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := x.db.QueryRowContext(bootCtx, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'rag_meta'
		)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}
	if exists {
		var storedDim int
		if err := x.db.QueryRowContext(bootCtx, `SELECT embed_dim FROM rag_meta WHERE version = 1`).Scan(&storedDim); err != nil {
			if err == sql.ErrNoRows {
				return x.runBootstrap(bootCtx)
			}
			return fmt.Errorf("meta version check failed: %w", err)
		}
		// Changing the embedding model requires re-embedding everything; an
		// index built with a different dimension cannot be reused.
		if storedDim != x.dim {
			return fmt.Errorf("%w: index built with dim %d, configured dim %d (re-embed required)",
				core.ErrInvalidConfiguration, storedDim, x.dim)
		}
		return nil
	}
	return x.runBootstrap(bootCtx)
}

func (x *PgVectorIndex) runBootstrap(ctx context.Context) error {
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}
	stmt := strings.ReplaceAll(string(sqlBytes), "__EMBED_DIM__", strconv.Itoa(x.dim))

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	x.log.Info("vector index schema bootstrapped", "embed_dim", x.dim)
	return nil
}

// Upsert writes records in one transaction. Re-upserting a chunk id replaces
// its vector and metadata.
func (x *PgVectorIndex) Upsert(ctx context.Context, tenantID string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if len(records[i].Embedding) != x.dim {
			return fmt.Errorf("%w: record %q has dimension %d, index expects %d",
				core.ErrVectorIndex, records[i].ChunkID, len(records[i].Embedding), x.dim)
		}
	}

	tx, err := x.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", core.ErrVectorIndex, err)
	}

	const q = `
		INSERT INTO rag_chunks
			(id, tenant_id, document_id, source_name, page, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			document_id = EXCLUDED.document_id,
			source_name = EXCLUDED.source_name,
			page = EXCLUDED.page,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: prepare: %v", core.ErrVectorIndex, err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		var createdAt interface{}
		if !r.CreatedAt.IsZero() {
			createdAt = r.CreatedAt
		}
		if _, err := stmt.ExecContext(ctx,
			r.ChunkID, tenantID, r.DocumentID, r.SourceName, r.Page, r.Text,
			pgvector.NewVector(r.Embedding), createdAt,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: upsert chunk %s: %v", core.ErrVectorIndex, r.ChunkID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", core.ErrVectorIndex, err)
	}
	return nil
}

// Search returns the k nearest records for the tenant by cosine similarity,
// newest first on ties.
func (x *PgVectorIndex) Search(ctx context.Context, tenantID string, queryVec []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	const q = `
		SELECT id, tenant_id, document_id, source_name, page, text,
		       embedding <=> $2 AS distance, created_at
		FROM rag_chunks
		WHERE tenant_id = $1
		ORDER BY embedding <=> $2 ASC, created_at DESC
		LIMIT $3
	`
	rows, err := x.db.QueryContext(ctx, q, tenantID, pgvector.NewVector(queryVec), k)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", core.ErrVectorIndex, err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var (
			rec      models.VectorRecord
			distance float64
		)
		if err := rows.Scan(
			&rec.ChunkID, &rec.TenantID, &rec.DocumentID, &rec.SourceName,
			&rec.Page, &rec.Text, &distance, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", core.ErrVectorIndex, err)
		}
		if rec.TenantID != tenantID {
			x.log.Error("search returned foreign tenant row",
				"want_tenant", tenantID, "got_tenant", rec.TenantID, "chunk_id", rec.ChunkID)
			return nil, fmt.Errorf("%w: chunk %s belongs to tenant %s", core.ErrTenantIsolation, rec.ChunkID, rec.TenantID)
		}
		out = append(out, models.SearchResult{Record: rec, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", core.ErrVectorIndex, err)
	}
	return out, nil
}

func (x *PgVectorIndex) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	_, err := x.db.ExecContext(ctx,
		`DELETE FROM rag_chunks WHERE tenant_id = $1 AND document_id = $2`, tenantID, documentID)
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", core.ErrVectorIndex, err)
	}
	return nil
}

func (x *PgVectorIndex) DeleteTenant(ctx context.Context, tenantID string) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM rag_chunks WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("%w: delete tenant: %v", core.ErrVectorIndex, err)
	}
	return nil
}
