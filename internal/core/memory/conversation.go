package memory

import (
	"context"
	"sync"
	"time"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
)

var _ core.ConversationMemory = (*Store)(nil)

// Store keeps conversation history in process memory, partitioned by tenant.
// History is volatile: a restart clears every session, which matches the
// session contract. Eviction is FIFO once a session exceeds maxMessages.
type Store struct {
	mu          sync.RWMutex
	maxMessages int
	tenants     map[string]map[string][]models.Message

	now func() time.Time
}

func NewStore(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &Store{
		maxMessages: maxMessages,
		tenants:     make(map[string]map[string][]models.Message),
		now:         time.Now,
	}
}

func (s *Store) Append(ctx context.Context, tenantID, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(tenantID, sessionID, models.Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	return nil
}

func (s *Store) AppendExchange(ctx context.Context, tenantID, sessionID, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.appendLocked(tenantID, sessionID,
		models.Message{Role: models.RoleUser, Content: question, Timestamp: now},
		models.Message{Role: models.RoleAssistant, Content: answer, Timestamp: now},
	)
	return nil
}

func (s *Store) appendLocked(tenantID, sessionID string, newMsgs ...models.Message) {
	sessions, ok := s.tenants[tenantID]
	if !ok {
		sessions = make(map[string][]models.Message)
		s.tenants[tenantID] = sessions
	}
	msgs := append(sessions[sessionID], newMsgs...)
	if over := len(msgs) - s.maxMessages; over > 0 {
		msgs = msgs[over:]
	}
	sessions[sessionID] = msgs
}

func (s *Store) History(ctx context.Context, tenantID, sessionID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.tenants[tenantID][sessionID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *Store) Clear(ctx context.Context, tenantID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessions, ok := s.tenants[tenantID]; ok {
		delete(sessions, sessionID)
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.tenants[tenantID])
	delete(s.tenants, tenantID)
	return count, nil
}

func (s *Store) SessionCount(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants[tenantID]), nil
}
