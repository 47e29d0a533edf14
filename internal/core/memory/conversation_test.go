package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamani-ai/rag-backend/internal/models"
)

func TestStore_AppendAndHistoryOrder(t *testing.T) {
	s := NewStore(20)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "tenant-a", "s1", models.RoleUser, "first question"))
	require.NoError(t, s.Append(ctx, "tenant-a", "s1", models.RoleAssistant, "first answer"))
	require.NoError(t, s.Append(ctx, "tenant-a", "s1", models.RoleUser, "second question"))

	msgs, err := s.History(ctx, "tenant-a", "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first question", msgs[0].Content)
	assert.Equal(t, "first answer", msgs[1].Content)
	assert.Equal(t, "second question", msgs[2].Content)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
}

func TestStore_UnknownSessionEmptyHistory(t *testing.T) {
	s := NewStore(20)
	msgs, err := s.History(context.Background(), "tenant-a", "never-seen")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStore_FIFOEviction(t *testing.T) {
	s := NewStore(4)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, s.Append(ctx, "tenant-a", "s1", models.RoleUser, fmt.Sprintf("msg-%d", i)))
	}

	msgs, err := s.History(ctx, "tenant-a", "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 4, "oldest messages evicted first")
	assert.Equal(t, "msg-2", msgs[0].Content)
	assert.Equal(t, "msg-5", msgs[3].Content)
}

func TestStore_ClearSession(t *testing.T) {
	s := NewStore(20)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "tenant-a", "s1", models.RoleUser, "hello"))
	require.NoError(t, s.Append(ctx, "tenant-a", "s2", models.RoleUser, "hi there"))

	require.NoError(t, s.Clear(ctx, "tenant-a", "s1"))

	gone, err := s.History(ctx, "tenant-a", "s1")
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := s.History(ctx, "tenant-a", "s2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestStore_ClearUnknownSessionIsNoop(t *testing.T) {
	s := NewStore(20)
	assert.NoError(t, s.Clear(context.Background(), "tenant-a", "ghost"))
	n, err := s.ClearAll(context.Background(), "tenant-without-sessions")
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_AppendExchange(t *testing.T) {
	s := NewStore(20)
	ctx := context.Background()

	require.NoError(t, s.AppendExchange(ctx, "tenant-a", "s1", "what is the total?", "the total is $1,234.56"))

	msgs, err := s.History(ctx, "tenant-a", "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "what is the total?", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "the total is $1,234.56", msgs[1].Content)
}

func TestStore_AppendExchangeEvicts(t *testing.T) {
	s := NewStore(4)
	ctx := context.Background()

	require.NoError(t, s.AppendExchange(ctx, "tenant-a", "s1", "q1", "a1"))
	require.NoError(t, s.AppendExchange(ctx, "tenant-a", "s1", "q2", "a2"))
	require.NoError(t, s.AppendExchange(ctx, "tenant-a", "s1", "q3", "a3"))

	msgs, err := s.History(ctx, "tenant-a", "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "q2", msgs[0].Content)
	assert.Equal(t, "a3", msgs[3].Content)
}

func TestStore_ClearAllScopedToTenant(t *testing.T) {
	s := NewStore(20)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "tenant-a", "s1", models.RoleUser, "a"))
	require.NoError(t, s.Append(ctx, "tenant-a", "s2", models.RoleUser, "b"))
	require.NoError(t, s.Append(ctx, "tenant-b", "s1", models.RoleUser, "c"))

	cleared, err := s.ClearAll(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	n, err := s.SessionCount(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Zero(t, n)

	other, err := s.History(ctx, "tenant-b", "s1")
	require.NoError(t, err)
	assert.Len(t, other, 1, "tenant-b history untouched")
}

func TestStore_TenantIsolation(t *testing.T) {
	s := NewStore(20)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "tenant-a", "shared-session-id", models.RoleUser, "tenant a secret"))

	msgs, err := s.History(ctx, "tenant-b", "shared-session-id")
	require.NoError(t, err)
	assert.Empty(t, msgs, "same session id under another tenant is a different session")
}

func TestStore_SessionCount(t *testing.T) {
	s := NewStore(20)
	ctx := context.Background()

	n, err := s.SessionCount(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Append(ctx, "tenant-a", "s1", models.RoleUser, "x"))
	require.NoError(t, s.Append(ctx, "tenant-a", "s2", models.RoleUser, "y"))

	n, err = s.SessionCount(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_ConcurrentAppendsAcrossTenants(t *testing.T) {
	s := NewStore(100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tenant := fmt.Sprintf("tenant-%d", i%2)
			for j := 0; j < 50; j++ {
				_ = s.Append(ctx, tenant, "s1", models.RoleUser, "m")
			}
		}(i)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent appends deadlocked")
	}

	for _, tenant := range []string{"tenant-0", "tenant-1"} {
		msgs, err := s.History(ctx, tenant, "s1")
		require.NoError(t, err)
		assert.Len(t, msgs, 100)
	}
}

func TestStore_HistoryReturnsCopy(t *testing.T) {
	s := NewStore(20)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "tenant-a", "s1", models.RoleUser, "original"))

	msgs, err := s.History(ctx, "tenant-a", "s1")
	require.NoError(t, err)
	msgs[0].Content = "mutated"

	again, err := s.History(ctx, "tenant-a", "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}
