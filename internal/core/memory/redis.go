package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/models"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

var _ core.ConversationMemory = (*RedisStore)(nil)

// RedisStore keeps session history in redis lists so history survives process
// restarts and is shared across replicas. One list per (tenant, session),
// trimmed to maxMessages after each append.
type RedisStore struct {
	log         *logger.Logger
	rdb         *goredis.Client
	maxMessages int
}

func NewRedisStore(ctx context.Context, log *logger.Logger, addr string, maxMessages int) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: redis address is empty", core.ErrInvalidConfiguration)
	}
	if maxMessages <= 0 {
		maxMessages = 20
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		log:         log.With("service", "RedisConversationMemory"),
		rdb:         rdb,
		maxMessages: maxMessages,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func sessionKey(tenantID, sessionID string) string {
	return "rag:mem:" + tenantID + ":" + sessionID
}

func tenantPattern(tenantID string) string {
	return "rag:mem:" + tenantID + ":*"
}

func (s *RedisStore) Append(ctx context.Context, tenantID, sessionID, role, content string) error {
	raw, err := json.Marshal(models.Message{Role: role, Content: content, Timestamp: time.Now()})
	if err != nil {
		return err
	}
	key := sessionKey(tenantID, sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

// AppendExchange pushes both messages inside one MULTI/EXEC block so a failed
// commit leaves the list untouched.
func (s *RedisStore) AppendExchange(ctx context.Context, tenantID, sessionID, question, answer string) error {
	now := time.Now()
	rawUser, err := json.Marshal(models.Message{Role: models.RoleUser, Content: question, Timestamp: now})
	if err != nil {
		return err
	}
	rawAssistant, err := json.Marshal(models.Message{Role: models.RoleAssistant, Content: answer, Timestamp: now})
	if err != nil {
		return err
	}
	key := sessionKey(tenantID, sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, rawUser, rawAssistant)
	pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append exchange: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, tenantID, sessionID string) ([]models.Message, error) {
	raws, err := s.rdb.LRange(ctx, sessionKey(tenantID, sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis history: %w", err)
	}
	msgs := make([]models.Message, 0, len(raws))
	for _, raw := range raws {
		var m models.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			s.log.Warn("dropping unreadable history entry", "tenant", tenantID, "session", sessionID, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Clear(ctx context.Context, tenantID, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(tenantID, sessionID)).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearAll(ctx context.Context, tenantID string) (int, error) {
	count := 0
	iter := s.rdb.Scan(ctx, 0, tenantPattern(tenantID), 256).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return count, fmt.Errorf("redis clear all: %w", err)
		}
		count++
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("redis scan: %w", err)
	}
	return count, nil
}

func (s *RedisStore) SessionCount(ctx context.Context, tenantID string) (int, error) {
	count := 0
	iter := s.rdb.Scan(ctx, 0, tenantPattern(tenantID), 256).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return count, nil
}
