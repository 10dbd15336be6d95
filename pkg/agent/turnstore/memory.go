package turnstore

import (
	"context"
	"sync"
	"time"

	"github.com/trailpost/shopagent/pkg/agent/types"
)

// MemoryStore keeps turns in process memory. Useful for development and
// tests; conversations do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	turns     map[string][]types.Turn
	summaries map[string]Summary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns:     make(map[string][]types.Turn),
		summaries: make(map[string]Summary),
	}
}

func (s *MemoryStore) Append(ctx context.Context, conversationID string, role types.Role, content string) (types.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := types.Turn{
		ConversationID: conversationID,
		Seq:            int64(len(s.turns[conversationID])) + 1,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	s.turns[conversationID] = append(s.turns[conversationID], turn)
	return turn, nil
}

func (s *MemoryStore) Load(ctx context.Context, conversationID string) ([]types.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.turns[conversationID]
	out := make([]types.Turn, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Summary(ctx context.Context, conversationID string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.summaries[conversationID], nil
}

func (s *MemoryStore) SaveSummary(ctx context.Context, conversationID string, sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[conversationID] = sum
	return nil
}
