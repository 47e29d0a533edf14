package core

import (
	"context"

	"github.com/adamani-ai/rag-backend/internal/models"
)

// ConversationMemory keeps ordered message history per (tenant, session).
// Sessions exist implicitly from the first Append and are destroyed by Clear;
// clearing an unknown session is not an error.
type ConversationMemory interface {
	Append(ctx context.Context, tenantID, sessionID, role, content string) error

	// AppendExchange commits one completed (question, answer) turn as a
	// unit: either both messages are recorded or neither.
	AppendExchange(ctx context.Context, tenantID, sessionID, question, answer string) error

	// History returns messages in chronological order, empty for an unknown
	// session.
	History(ctx context.Context, tenantID, sessionID string) ([]models.Message, error)

	Clear(ctx context.Context, tenantID, sessionID string) error

	// ClearAll drops every session of the tenant and reports how many were
	// removed.
	ClearAll(ctx context.Context, tenantID string) (int, error)

	// SessionCount reports how many sessions currently hold history for the
	// tenant.
	SessionCount(ctx context.Context, tenantID string) (int, error)
}
