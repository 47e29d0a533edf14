package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

// systemPrompt keeps answers grounded in the retrieved context.
const systemPrompt = "You are an intelligent assistant answering based only on the provided document context. " +
	"If the context does not contain the answer, say 'I cannot find this in the documents.'"

// Retriever is the slice of the retrieval engine the orchestrator needs.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID, query string, k int) ([]models.RetrievedChunk, error)
}

// Orchestrator produces one grounded answer per chat turn as an ordered event
// stream: sources, then tokens as they arrive, then done or error. The turn is
// committed to conversation memory only after the stream completes; a failed
// or cancelled stream persists nothing.
type Orchestrator struct {
	log       *logger.Logger
	retriever Retriever
	memory    core.ConversationMemory
	llm       core.LLMProvider
}

func New(log *logger.Logger, retriever Retriever, memory core.ConversationMemory, llm core.LLMProvider) *Orchestrator {
	return &Orchestrator{
		log:       log.With("service", "Orchestrator"),
		retriever: retriever,
		memory:    memory,
		llm:       llm,
	}
}

// Stream runs one query turn. The returned channel is closed when the turn
// ends; cancelling ctx aborts generation and no partial answer is persisted.
// An empty sessionID starts a fresh session whose id is carried by the done
// event.
func (o *Orchestrator) Stream(ctx context.Context, tenantID, sessionID, question string, k int) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent, 8)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	go func() {
		defer close(out)
		o.run(ctx, out, tenantID, sessionID, question, k)
	}()
	return out
}

func (o *Orchestrator) run(ctx context.Context, out chan<- models.StreamEvent, tenantID, sessionID, question string, k int) {
	log := o.log.With("tenant", tenantID, "session", sessionID)

	chunks, err := o.retriever.Retrieve(ctx, tenantID, question, k)
	if err != nil {
		log.Error("retrieval failed, aborting turn", "error", err)
		o.emit(ctx, out, errorEvent(err))
		return
	}
	if chunks == nil {
		chunks = []models.RetrievedChunk{}
	}

	// Sources go out before any token so the caller can render provenance
	// immediately.
	if !o.emit(ctx, out, models.StreamEvent{Type: models.EventSources, Sources: chunks, SessionID: sessionID}) {
		return
	}

	history, err := o.memory.History(ctx, tenantID, sessionID)
	if err != nil {
		log.Error("history fetch failed, aborting turn", "error", err)
		o.emit(ctx, out, errorEvent(err))
		return
	}

	userPrompt := buildUserPrompt(chunks, history, question)

	var answer strings.Builder
	streamErr := o.llm.GenerateStream(ctx, systemPrompt, userPrompt, func(token string) error {
		answer.WriteString(token)
		if !o.emit(ctx, out, models.StreamEvent{Type: models.EventToken, Token: token}) {
			return context.Canceled
		}
		return nil
	})
	if streamErr != nil {
		if ctx.Err() != nil || errors.Is(streamErr, context.Canceled) {
			// Caller went away: drop the partial answer silently.
			log.Info("turn cancelled, discarding partial answer")
			return
		}
		log.Error("generation failed mid-stream", "error", streamErr)
		o.emit(ctx, out, errorEvent(streamErr))
		return
	}

	// Commit the completed exchange as one unit. Memory writes happen only
	// here, so a failed turn leaves history exactly as it was.
	if err := o.memory.AppendExchange(ctx, tenantID, sessionID, question, answer.String()); err != nil {
		log.Error("memory commit failed", "error", err)
		o.emit(ctx, out, errorEvent(err))
		return
	}

	o.emit(ctx, out, models.StreamEvent{Type: models.EventDone, SessionID: sessionID})
}

// emit delivers one event unless the consumer is gone. Returns false when the
// turn should stop.
func (o *Orchestrator) emit(ctx context.Context, out chan<- models.StreamEvent, ev models.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// errorEvent maps internal failures to user-safe messages; raw error text
// never crosses the wire.
func errorEvent(err error) models.StreamEvent {
	msg := "the assistant could not complete a response"
	switch {
	case errors.Is(err, core.ErrVectorIndex), errors.Is(err, core.ErrEmbeddingService):
		msg = "document search is temporarily unavailable"
	case errors.Is(err, core.ErrGenerationTimeout):
		msg = "the response timed out"
	case errors.Is(err, core.ErrGenerationStream):
		msg = "the response was interrupted"
	}
	return models.StreamEvent{Type: models.EventError, Err: msg}
}

// buildUserPrompt lays out retrieved context, prior conversation and the
// current question as one prompt.
func buildUserPrompt(chunks []models.RetrievedChunk, history []models.Message, question string) string {
	var b strings.Builder

	b.WriteString("Context:\n")
	if len(chunks) == 0 {
		b.WriteString("(no documents matched)\n")
	}
	for _, ch := range chunks {
		b.WriteString(ch.Content)
		b.WriteString("\n---\n")
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range history {
			switch m.Role {
			case models.RoleAssistant:
				b.WriteString("Assistant: ")
			default:
				b.WriteString("User: ")
			}
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
